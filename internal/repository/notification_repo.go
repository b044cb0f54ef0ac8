package repository

import (
	"github.com/JsonMa/erp/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 创建消息
func (r *NotificationRepository) Create(notification *model.Notification) error {
	return errors.Wrap(r.db.Create(notification).Error, "创建消息失败")
}

// CountUnread 统计用户的未读有效消息数
func (r *NotificationRepository) CountUnread(uid int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Notification{}).
		Where("uid = ? AND status = ? AND read = ?", uid, model.NotificationStatusValid, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "统计未读消息失败")
	}
	return count, nil
}

// ListByUser 查询用户的有效消息，按时间倒序
func (r *NotificationRepository) ListByUser(uid int64) ([]model.Notification, error) {
	var notifications []model.Notification
	err := r.db.Where("uid = ? AND status = ?", uid, model.NotificationStatusValid).
		Order("created_at DESC").Find(&notifications).Error
	if err != nil {
		return nil, errors.Wrap(err, "查询消息列表失败")
	}
	return notifications, nil
}
