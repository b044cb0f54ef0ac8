// Package jpush 封装极光推送 REST 接口
package jpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config 极光推送配置
type Config struct {
	AppKey       string
	MasterSecret string
	// APIBaseURL 推送接口地址，默认 https://api.jpush.cn
	APIBaseURL string
}

// Audience 推送目标，按别名投递
type Audience struct {
	Alias []string `json:"alias"`
}

// AndroidNotification Android 通知体
type AndroidNotification struct {
	Alert  string                 `json:"alert"`
	Title  string                 `json:"title,omitempty"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// IOSNotification iOS 通知体
type IOSNotification struct {
	Alert  string                 `json:"alert"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

// Notification 各平台通知体
type Notification struct {
	Android *AndroidNotification `json:"android,omitempty"`
	IOS     *IOSNotification     `json:"ios,omitempty"`
}

// Options 推送选项
type Options struct {
	TimeToLive     int  `json:"time_to_live"`
	ApnsProduction bool `json:"apns_production"`
}

// PushPayload 推送请求
type PushPayload struct {
	Platform     string       `json:"platform"`
	Audience     Audience     `json:"audience"`
	Notification Notification `json:"notification"`
	Options      Options      `json:"options"`
}

// Client 极光推送 HTTP 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建极光推送客户端
func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.jpush.cn"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Push 发送一次推送请求，platform 为空时默认推送全平台
func (c *Client) Push(ctx context.Context, payload *PushPayload) error {
	if payload.Platform == "" {
		payload.Platform = "all"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化推送请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/v3/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建推送请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.AppKey, c.cfg.MasterSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求极光推送失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("极光推送返回错误状态码: %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
