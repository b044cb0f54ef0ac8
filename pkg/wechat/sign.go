package wechat

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"sort"
	"strings"
)

const nonceCandidates = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Sign 生成请求参数签名：参数按 key 字典序排列拼接为 key=value&...，
// 末尾追加 &key=<商户密钥>，取 MD5 后转大写
func Sign(params map[string]string, key string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('&')
	}
	b.WriteString("key=")
	b.WriteString(key)

	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify 验证参数签名：剔除 sign 字段后重新计算并忽略大小写比较。
// 只返回真假，字段缺失同样表现为签名不匹配
func Verify(params map[string]string, key string) bool {
	sign, ok := params["sign"]
	if !ok {
		return false
	}

	rest := make(map[string]string, len(params)-1)
	for k, v := range params {
		if k == "sign" {
			continue
		}
		rest[k] = v
	}
	return strings.EqualFold(sign, Sign(rest, key))
}

// NonceStr 生成 16 位随机字符串
func NonceStr() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = nonceCandidates[rand.Intn(len(nonceCandidates))]
	}
	return string(b)
}
