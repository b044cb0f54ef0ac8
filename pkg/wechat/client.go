package wechat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// ReturnCodeSuccess 微信接口通信成功的返回码
	ReturnCodeSuccess = "SUCCESS"
	// PackageValue APP 支付 package 字段的固定值
	PackageValue = "Sign=WXPay"
)

// Config 微信支付商户配置
type Config struct {
	AppID     string
	MchID     string
	Key       string
	TradeType string
	NotifyURL string
	// APIBaseURL 微信支付网关地址，默认 https://api.mch.weixin.qq.com
	APIBaseURL string
}

// Client 微信支付 HTTP 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建微信支付客户端
func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.mch.weixin.qq.com"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Sign 使用商户密钥对参数签名
func (c *Client) Sign(params map[string]string) string {
	return Sign(params, c.cfg.Key)
}

// Verify 使用商户密钥验证参数签名
func (c *Client) Verify(params map[string]string) bool {
	return Verify(params, c.cfg.Key)
}

// UnifiedOrderRequest 统一下单的订单侧参数，商户固定字段由客户端补齐
type UnifiedOrderRequest struct {
	Body           string // 商品描述
	OutTradeNo     string // 32 位商户订单号
	TotalFee       int64  // 金额，单位分
	SpbillCreateIP string // 调用方 IP
}

// UnifiedOrder 调用统一下单接口，返回解码后的响应参数。
// 只处理传输层错误，return_code 的业务判断交给调用方
func (c *Client) UnifiedOrder(ctx context.Context, req UnifiedOrderRequest) (map[string]string, error) {
	params := map[string]string{
		"appid":            c.cfg.AppID,
		"mch_id":           c.cfg.MchID,
		"trade_type":       c.cfg.TradeType,
		"notify_url":       c.cfg.NotifyURL,
		"nonce_str":        NonceStr(),
		"body":             req.Body,
		"out_trade_no":     req.OutTradeNo,
		"total_fee":        strconv.FormatInt(req.TotalFee, 10),
		"spbill_create_ip": req.SpbillCreateIP,
	}
	params["sign"] = Sign(params, c.cfg.Key)

	url := c.cfg.APIBaseURL + "/pay/unifiedorder"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(EncodeXML(params)))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求微信支付失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("微信支付返回错误状态码: %d, body: %s", resp.StatusCode, string(body))
	}

	result, err := DecodeXML(body)
	if err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return result, nil
}
