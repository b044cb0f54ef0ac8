package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TradeStatusPending  int16 = 1 // 待支付
	TradeStatusSuccess  int16 = 2 // 支付成功
	TradeStatusClosed   int16 = 3 // 已关闭
	TradeStatusFinished int16 = 4 // 已完结
)

const (
	TradeTypeWechat int16 = 1 // 微信支付
	TradeTypeAlipay int16 = 2 // 支付宝
)

// tradeStatusNames 支付回调使用的状态词汇表
var tradeStatusNames = map[string]int16{
	"pending":  TradeStatusPending,
	"success":  TradeStatusSuccess,
	"closed":   TradeStatusClosed,
	"finished": TradeStatusFinished,
}

// TradeStatusFromName 将回调状态字符串转换为状态码
func TradeStatusFromName(name string) (int16, bool) {
	status, ok := tradeStatusNames[name]
	return status, ok
}

// Trade 交易，一次支付尝试对应一条交易记录，关联唯一订单
type Trade struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	Type      int16     `gorm:"type:smallint;not null;default:1" json:"type"`
	Status    int16     `gorm:"type:smallint;not null;default:1;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
