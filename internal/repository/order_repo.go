package repository

import (
	"github.com/JsonMa/erp/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID 根据 ID 查找订单
func (r *OrderRepository) FindByID(id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, errors.Wrap(err, "查询订单失败")
	}
	return &order, nil
}

// Create 创建订单
func (r *OrderRepository) Create(order *model.Order) error {
	return errors.Wrap(r.db.Create(order).Error, "创建订单失败")
}

// Save 保存订单
func (r *OrderRepository) Save(tx *gorm.DB, order *model.Order) error {
	return errors.Wrap(tx.Save(order).Error, "保存订单失败")
}

// UpdatePaid 在事务中将订单置为已支付并关联交易
func (r *OrderRepository) UpdatePaid(tx *gorm.DB, orderID, tradeID uuid.UUID) error {
	err := tx.Model(&model.Order{}).Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":   model.OrderStatusPayed,
			"trade_id": tradeID,
		}).Error
	return errors.Wrap(err, "更新订单支付状态失败")
}

// GetDB 获取数据库实例（用于事务）
func (r *OrderRepository) GetDB() *gorm.DB {
	return r.db
}

// OrderFilter 订单查询过滤条件
type OrderFilter struct {
	UserID   int64
	Status   *int16
	Page     int
	PageSize int
}

// Normalize 规范化分页参数
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// ListOrders 分页查询订单列表
func (r *OrderRepository) ListOrders(filter OrderFilter) ([]model.Order, int64, error) {
	query := r.db.Model(&model.Order{})

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "统计订单数量失败")
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.PageSize

	var orders []model.Order
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.PageSize).Find(&orders).Error; err != nil {
		return nil, 0, errors.Wrap(err, "查询订单列表失败")
	}
	return orders, total, nil
}
