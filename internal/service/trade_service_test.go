package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JsonMa/erp/internal/apperrors"
	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/pkg/wechat"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testWechatKey = "192006250b4c09247ec02edce69f6a2d"

// fakeWechatServer 模拟微信统一下单接口
func fakeWechatServer(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		params, err := wechat.DecodeXML(body)
		require.NoError(t, err)
		require.True(t, wechat.Verify(params, testWechatKey))

		if fail {
			w.Write(wechat.EncodeXML(map[string]string{
				"return_code": "FAIL",
				"return_msg":  "签名错误",
			}))
			return
		}
		resp := map[string]string{
			"return_code": "SUCCESS",
			"appid":       params["appid"],
			"mch_id":      params["mch_id"],
			"prepay_id":   "wx201410272009395522657a690389285100",
		}
		resp["sign"] = wechat.Sign(resp, testWechatKey)
		w.Write(wechat.EncodeXML(resp))
	}))
}

func newTradeService(t *testing.T, db *gorm.DB, apiURL string) (*TradeService, *mockPublisher) {
	t.Helper()
	orderRepo, tradeRepo, commodityRepo := newRepos(db)
	client := wechat.NewClient(wechat.Config{
		AppID:      "wxd930ea5d5a258f4f",
		MchID:      "10000100",
		Key:        testWechatKey,
		TradeType:  "APP",
		NotifyURL:  "https://example.com/api/wechat/notify",
		APIBaseURL: apiURL,
	})
	publisher := &mockPublisher{}
	return NewTradeService(orderRepo, tradeRepo, commodityRepo, client, publisher), publisher
}

func TestCreateTrade(t *testing.T) {
	t.Run("成功创建交易并返回支付参数", func(t *testing.T) {
		db := newTestDB(t)
		srv := fakeWechatServer(t, false)
		defer srv.Close()
		svc, publisher := newTradeService(t, db, srv.URL)

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusCreated)

		trade, payload, err := svc.CreateTrade(context.Background(), user.ID, order.ID, "127.0.0.1")
		require.NoError(t, err)

		assert.Equal(t, order.ID, trade.OrderID)
		assert.Equal(t, model.TradeTypeWechat, trade.Type)
		assert.Equal(t, model.TradeStatusPending, trade.Status)

		// 交易已落库
		var stored model.Trade
		require.NoError(t, db.First(&stored, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusPending, stored.Status)

		// 客户端支付参数完整且签名可验证
		assert.Equal(t, "wxd930ea5d5a258f4f", payload["appid"])
		assert.Equal(t, "10000100", payload["partnerid"])
		assert.Equal(t, "wx201410272009395522657a690389285100", payload["prepayid"])
		assert.Equal(t, wechat.PackageValue, payload["package"])
		assert.Len(t, payload["timestamp"], 10)
		assert.NotEmpty(t, payload["noncestr"])
		assert.True(t, wechat.Verify(payload, testWechatKey))

		// 已发送延时关闭消息
		require.Len(t, publisher.delays, 1)
		assert.Equal(t, trade.ID.String(), publisher.delays[0])
	})

	t.Run("订单不存在", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newTradeService(t, db, "http://127.0.0.1:1")

		_, _, err := svc.CreateTrade(context.Background(), 1, uuid.New(), "127.0.0.1")
		require.Error(t, err)
		e := apperrors.As(err)
		require.NotNil(t, e)
		assert.Equal(t, apperrors.KindNotFound, e.Kind)
		assert.Equal(t, apperrors.CodeTradeNotFound, e.Code)
	})

	t.Run("非订单所有者", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newTradeService(t, db, "http://127.0.0.1:1")

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusCreated)

		_, _, err := svc.CreateTrade(context.Background(), user.ID+1, order.ID, "127.0.0.1")
		assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	})

	t.Run("订单状态不允许支付", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newTradeService(t, db, "http://127.0.0.1:1")

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusPayed)

		_, _, err := svc.CreateTrade(context.Background(), user.ID, order.ID, "127.0.0.1")
		require.Error(t, err)
		e := apperrors.As(err)
		require.NotNil(t, e)
		assert.Equal(t, apperrors.KindInvalidState, e.Kind)
		assert.Equal(t, apperrors.CodeTradeInvalidState, e.Code)
	})

	t.Run("微信返回失败透出上游错误信息", func(t *testing.T) {
		db := newTestDB(t)
		srv := fakeWechatServer(t, true)
		defer srv.Close()
		svc, _ := newTradeService(t, db, srv.URL)

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusCreated)

		_, _, err := svc.CreateTrade(context.Background(), user.ID, order.ID, "127.0.0.1")
		require.Error(t, err)
		e := apperrors.As(err)
		require.NotNil(t, e)
		assert.Equal(t, apperrors.KindUpstream, e.Kind)
		assert.Equal(t, apperrors.CodeTradeUpstream, e.Code)
		assert.Equal(t, "签名错误", e.Message)
	})

	t.Run("金额按分向下取整", func(t *testing.T) {
		db := newTestDB(t)
		var receivedFee string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			params, err := wechat.DecodeXML(body)
			require.NoError(t, err)
			receivedFee = params["total_fee"]
			resp := map[string]string{"return_code": "SUCCESS", "appid": "a", "mch_id": "m", "prepay_id": "p"}
			w.Write(wechat.EncodeXML(resp))
		}))
		defer srv.Close()
		svc, _ := newTradeService(t, db, srv.URL)

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "0.019")
		order := createOrder(t, db, user, commodity, model.OrderStatusCreated)

		_, _, err := svc.CreateTrade(context.Background(), user.ID, order.ID, "127.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "1", receivedFee)
	})
}

func TestFinishTrade(t *testing.T) {
	setup := func(t *testing.T) (*gorm.DB, *TradeService, *mockPublisher, *model.Order, *model.Trade) {
		db := newTestDB(t)
		svc, publisher := newTradeService(t, db, "http://127.0.0.1:1")

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusCreated)
		trade := &model.Trade{OrderID: order.ID, Type: model.TradeTypeWechat, Status: model.TradeStatusPending}
		require.NoError(t, db.Create(trade).Error)
		return db, svc, publisher, order, trade
	}

	t.Run("success 状态下订单和交易原子更新", func(t *testing.T) {
		db, svc, publisher, order, trade := setup(t)

		require.NoError(t, svc.FinishTrade(context.Background(), trade.ID, model.TradeStatusSuccess))

		var storedOrder model.Order
		require.NoError(t, db.First(&storedOrder, "id = ?", order.ID).Error)
		assert.Equal(t, model.OrderStatusPayed, storedOrder.Status)
		require.NotNil(t, storedOrder.TradeID)
		assert.Equal(t, trade.ID, *storedOrder.TradeID)

		var storedTrade model.Trade
		require.NoError(t, db.First(&storedTrade, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusSuccess, storedTrade.Status)

		// 已发送支付成功通知
		require.Len(t, publisher.notifies, 1)
		assert.Equal(t, trade.ID.String(), publisher.notifies[0].TradeID)
		assert.Equal(t, model.TradeStatusSuccess, publisher.notifies[0].Status)
	})

	t.Run("事务内任一写入失败时全部回滚", func(t *testing.T) {
		db, svc, _, order, trade := setup(t)

		// 让交易表的更新失败，订单更新应随之回滚
		forced := errors.New("forced failure")
		require.NoError(t, db.Callback().Update().Before("gorm:update").Register("force_fail_trades", func(tx *gorm.DB) {
			if tx.Statement.Table == "trades" {
				tx.AddError(forced)
			}
		}))
		defer db.Callback().Update().Remove("force_fail_trades")

		err := svc.FinishTrade(context.Background(), trade.ID, model.TradeStatusSuccess)
		require.Error(t, err)

		var storedOrder model.Order
		require.NoError(t, db.First(&storedOrder, "id = ?", order.ID).Error)
		assert.Equal(t, model.OrderStatusCreated, storedOrder.Status)
		assert.Nil(t, storedOrder.TradeID)

		var storedTrade model.Trade
		require.NoError(t, db.First(&storedTrade, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusPending, storedTrade.Status)
	})

	t.Run("closed 状态只关闭交易不动订单", func(t *testing.T) {
		db, svc, _, order, trade := setup(t)

		require.NoError(t, svc.FinishTrade(context.Background(), trade.ID, model.TradeStatusClosed))

		var storedTrade model.Trade
		require.NoError(t, db.First(&storedTrade, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusClosed, storedTrade.Status)

		var storedOrder model.Order
		require.NoError(t, db.First(&storedOrder, "id = ?", order.ID).Error)
		assert.Equal(t, model.OrderStatusCreated, storedOrder.Status)
		assert.Nil(t, storedOrder.TradeID)
	})

	t.Run("finished 状态同样按关闭处理", func(t *testing.T) {
		db, svc, _, _, trade := setup(t)

		require.NoError(t, svc.FinishTrade(context.Background(), trade.ID, model.TradeStatusFinished))

		var storedTrade model.Trade
		require.NoError(t, db.First(&storedTrade, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusClosed, storedTrade.Status)
	})

	t.Run("非法目标状态视为契约违例", func(t *testing.T) {
		db, svc, _, _, trade := setup(t)

		err := svc.FinishTrade(context.Background(), trade.ID, 99)
		assert.True(t, apperrors.IsKind(err, apperrors.KindContract))

		// 未发生任何写入
		var storedTrade model.Trade
		require.NoError(t, db.First(&storedTrade, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusPending, storedTrade.Status)
	})

	t.Run("交易不存在", func(t *testing.T) {
		_, svc, _, _, _ := setup(t)

		err := svc.FinishTrade(context.Background(), uuid.New(), model.TradeStatusSuccess)
		require.Error(t, err)
		e := apperrors.As(err)
		require.NotNil(t, e)
		assert.Equal(t, apperrors.KindNotFound, e.Kind)
		assert.Equal(t, apperrors.CodeTradeNotFound, e.Code)
	})
}

func TestHandleExpiredTrade(t *testing.T) {
	t.Run("待支付交易被关闭", func(t *testing.T) {
		db := newTestDB(t)
		svc, publisher := newTradeService(t, db, "http://127.0.0.1:1")

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusCreated)
		trade := &model.Trade{OrderID: order.ID, Type: model.TradeTypeWechat, Status: model.TradeStatusPending}
		require.NoError(t, db.Create(trade).Error)

		require.NoError(t, svc.HandleExpiredTrade(trade.ID.String()))

		var stored model.Trade
		require.NoError(t, db.First(&stored, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusClosed, stored.Status)
		require.Len(t, publisher.notifies, 1)
		assert.Equal(t, model.TradeStatusClosed, publisher.notifies[0].Status)
	})

	t.Run("已支付交易不受影响", func(t *testing.T) {
		db := newTestDB(t)
		svc, publisher := newTradeService(t, db, "http://127.0.0.1:1")

		user := createUser(t, db, "18511111111")
		commodity := createCommodity(t, db, "机械键盘", "99.90")
		order := createOrder(t, db, user, commodity, model.OrderStatusPayed)
		trade := &model.Trade{OrderID: order.ID, Type: model.TradeTypeWechat, Status: model.TradeStatusSuccess}
		require.NoError(t, db.Create(trade).Error)

		require.NoError(t, svc.HandleExpiredTrade(trade.ID.String()))

		var stored model.Trade
		require.NoError(t, db.First(&stored, "id = ?", trade.ID).Error)
		assert.Equal(t, model.TradeStatusSuccess, stored.Status)
		assert.Empty(t, publisher.notifies)
	})

	t.Run("非法交易 ID 返回错误", func(t *testing.T) {
		db := newTestDB(t)
		svc, _ := newTradeService(t, db, "http://127.0.0.1:1")
		assert.Error(t, svc.HandleExpiredTrade("not-a-uuid"))
	})
}
