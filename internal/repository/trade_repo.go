package repository

import (
	"github.com/JsonMa/erp/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create 创建交易
func (r *TradeRepository) Create(trade *model.Trade) error {
	return errors.Wrap(r.db.Create(trade).Error, "创建交易失败")
}

// FindByID 根据 ID 查找交易
func (r *TradeRepository) FindByID(id uuid.UUID) (*model.Trade, error) {
	var trade model.Trade
	if err := r.db.Where("id = ?", id).First(&trade).Error; err != nil {
		return nil, errors.Wrap(err, "查询交易失败")
	}
	return &trade, nil
}

// UpdateStatus 在给定事务（或连接）中更新交易状态
func (r *TradeRepository) UpdateStatus(tx *gorm.DB, id uuid.UUID, status int16) error {
	err := tx.Model(&model.Trade{}).Where("id = ?", id).Update("status", status).Error
	return errors.Wrap(err, "更新交易状态失败")
}

// GetDB 获取数据库实例（用于事务）
func (r *TradeRepository) GetDB() *gorm.DB {
	return r.db
}
