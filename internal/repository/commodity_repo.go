package repository

import (
	"github.com/JsonMa/erp/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CommodityRepository struct {
	db *gorm.DB
}

func NewCommodityRepository(db *gorm.DB) *CommodityRepository {
	return &CommodityRepository{db: db}
}

// FindByID 根据 ID 查找商品
func (r *CommodityRepository) FindByID(id uuid.UUID) (*model.Commodity, error) {
	var commodity model.Commodity
	if err := r.db.Where("id = ?", id).First(&commodity).Error; err != nil {
		return nil, errors.Wrap(err, "查询商品失败")
	}
	return &commodity, nil
}
