package wechat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "192006250b4c09247ec02edce69f6a2d"

func TestUnifiedOrder(t *testing.T) {
	t.Run("请求带签名发出并解析响应", func(t *testing.T) {
		var received map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			received, err = DecodeXML(body)
			require.NoError(t, err)

			resp := map[string]string{
				"return_code": "SUCCESS",
				"appid":       received["appid"],
				"mch_id":      received["mch_id"],
				"prepay_id":   "wx201410272009395522657a690389285100",
			}
			resp["sign"] = Sign(resp, testKey)
			w.Write(EncodeXML(resp))
		}))
		defer srv.Close()

		client := NewClient(Config{
			AppID:      "wxd930ea5d5a258f4f",
			MchID:      "10000100",
			Key:        testKey,
			TradeType:  "APP",
			NotifyURL:  "https://example.com/api/wechat/notify",
			APIBaseURL: srv.URL,
		})

		resp, err := client.UnifiedOrder(context.Background(), UnifiedOrderRequest{
			Body:           "测试商品",
			OutTradeNo:     "123e4567e89b12d3a456426614174000",
			TotalFee:       9900,
			SpbillCreateIP: "127.0.0.1",
		})
		require.NoError(t, err)

		// 发出的请求参数完整且签名合法
		assert.Equal(t, "wxd930ea5d5a258f4f", received["appid"])
		assert.Equal(t, "10000100", received["mch_id"])
		assert.Equal(t, "APP", received["trade_type"])
		assert.Equal(t, "https://example.com/api/wechat/notify", received["notify_url"])
		assert.Equal(t, "测试商品", received["body"])
		assert.Equal(t, "123e4567e89b12d3a456426614174000", received["out_trade_no"])
		assert.Equal(t, "9900", received["total_fee"])
		assert.Equal(t, "127.0.0.1", received["spbill_create_ip"])
		assert.NotEmpty(t, received["nonce_str"])
		assert.True(t, Verify(received, testKey))

		assert.Equal(t, "SUCCESS", resp["return_code"])
		assert.Equal(t, "wx201410272009395522657a690389285100", resp["prepay_id"])
	})

	t.Run("非 200 状态码返回错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(Config{Key: testKey, APIBaseURL: srv.URL})
		_, err := client.UnifiedOrder(context.Background(), UnifiedOrderRequest{})
		assert.Error(t, err)
	})

	t.Run("非法响应报文返回错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not xml at all <"))
		}))
		defer srv.Close()

		client := NewClient(Config{Key: testKey, APIBaseURL: srv.URL})
		_, err := client.UnifiedOrder(context.Background(), UnifiedOrderRequest{})
		assert.Error(t, err)
	})
}
