package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Logistics 物流记录，订单发货后创建，每个订单最多一条
type Logistics struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	Company   string    `gorm:"type:varchar(32);not null" json:"company"`
	OrderNo   string    `gorm:"type:varchar(32);not null" json:"order_no"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Logistics) TableName() string {
	return "logistics"
}

func (l *Logistics) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
