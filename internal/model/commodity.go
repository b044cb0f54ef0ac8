package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CommodityStatusOff int16 = 0 // 已下架
	CommodityStatusOn  int16 = 1 // 在售
)

// Commodity 商品
type Commodity struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(64);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	Status    int16           `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Commodity) TableName() string {
	return "commodities"
}

func (c *Commodity) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
