package service

import (
	"context"
	"testing"

	"github.com/JsonMa/erp/internal/model"
	"github.com/JsonMa/erp/internal/mq"
	"github.com/JsonMa/erp/internal/repository"
	"github.com/JsonMa/erp/pkg/jpush"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 打开内存数据库并迁移全部表
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Commodity{},
		&model.Order{},
		&model.Trade{},
		&model.Logistics{},
		&model.Notification{},
	))
	return db
}

// mockPublisher 记录发布的 MQ 消息
type mockPublisher struct {
	delays   []string
	notifies []*mq.TradeNotifyMessage
}

func (m *mockPublisher) PublishDelay(tradeID string) error {
	m.delays = append(m.delays, tradeID)
	return nil
}

func (m *mockPublisher) PublishNotify(msg *mq.TradeNotifyMessage) error {
	m.notifies = append(m.notifies, msg)
	return nil
}

// mockPusher 记录推送请求，可模拟推送失败
type mockPusher struct {
	payloads    []*jpush.PushPayload
	shouldError bool
}

func (m *mockPusher) Push(_ context.Context, payload *jpush.PushPayload) error {
	if m.shouldError {
		return context.DeadlineExceeded
	}
	m.payloads = append(m.payloads, payload)
	return nil
}

// createUser 创建测试用户
func createUser(t *testing.T, db *gorm.DB, phone string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "测试用户",
		Phone:    phone,
		Password: "111111",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createCommodity 创建测试商品
func createCommodity(t *testing.T, db *gorm.DB, name string, price string) *model.Commodity {
	t.Helper()
	commodity := &model.Commodity{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Status: model.CommodityStatusOn,
	}
	require.NoError(t, db.Create(commodity).Error)
	return commodity
}

// createOrder 创建测试订单
func createOrder(t *testing.T, db *gorm.DB, user *model.User, commodity *model.Commodity, status int16) *model.Order {
	t.Helper()
	order := &model.Order{
		UserID:      user.ID,
		CommodityID: commodity.ID,
		Status:      status,
		RealPrice:   commodity.Price,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func newRepos(db *gorm.DB) (*repository.OrderRepository, *repository.TradeRepository, *repository.CommodityRepository) {
	return repository.NewOrderRepository(db), repository.NewTradeRepository(db), repository.NewCommodityRepository(db)
}
