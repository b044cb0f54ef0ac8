package wechat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TradeNoFromUUID 将交易 ID 转换为 32 位商户订单号（去掉 UUID 中的分隔符）
func TradeNoFromUUID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

// UUIDFromTradeNo 将 32 位商户订单号还原为 UUID，
// 是 TradeNoFromUUID 的严格逆运算
func UUIDFromTradeNo(tn string) (uuid.UUID, error) {
	if len(tn) != 32 {
		return uuid.Nil, fmt.Errorf("商户订单号长度必须为 32: %q", tn)
	}
	s := tn[0:8] + "-" + tn[8:12] + "-" + tn[12:16] + "-" + tn[16:20] + "-" + tn[20:32]
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("商户订单号无效: %w", err)
	}
	return id, nil
}
