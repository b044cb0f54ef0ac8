package repository

import (
	"github.com/JsonMa/erp/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type LogisticsRepository struct {
	db *gorm.DB
}

func NewLogisticsRepository(db *gorm.DB) *LogisticsRepository {
	return &LogisticsRepository{db: db}
}

// Create 在给定事务（或连接）中创建物流记录，
// order_id 上的唯一索引保证每个订单最多一条
func (r *LogisticsRepository) Create(tx *gorm.DB, logistics *model.Logistics) error {
	return errors.Wrap(tx.Create(logistics).Error, "创建物流记录失败")
}
