package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusCreated  int16 = 1 // 已创建，待支付
	OrderStatusPayed    int16 = 2 // 已支付
	OrderStatusShipment int16 = 3 // 已发货
	OrderStatusFinished int16 = 4 // 已完成
)

// Order 订单，状态只能沿 已创建 -> 已支付 -> 已发货 -> 已完成 单向流转
type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      int64           `gorm:"not null;index" json:"user_id"`
	CommodityID uuid.UUID       `gorm:"type:uuid;not null" json:"commodity_id"`
	Status      int16           `gorm:"type:smallint;not null;default:1;index" json:"status"`
	RealPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"real_price"`
	TradeID     *uuid.UUID      `gorm:"type:uuid" json:"trade_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
