package model

import "time"

const (
	NotificationTypeSystem  int16 = 1 // 系统消息
	NotificationTypeWarning int16 = 2 // 告警消息
	NotificationTypeProblem int16 = 3 // 故障消息
	NotificationTypeOrder   int16 = 4 // 订单消息
	NotificationTypePost    int16 = 5 // 帖子消息
)

const (
	NotificationStatusInvalid int16 = 0
	NotificationStatusValid   int16 = 1
)

var notificationTitles = map[int16]string{
	NotificationTypeSystem:  "系统消息",
	NotificationTypeWarning: "告警消息",
	NotificationTypeProblem: "故障消息",
	NotificationTypeOrder:   "订单消息",
	NotificationTypePost:    "帖子消息",
}

// NotificationTitle 根据消息类型解析标题，类型非法时 ok 为 false
func NotificationTitle(t int16) (string, bool) {
	title, ok := notificationTitles[t]
	return title, ok
}

// Notification 用户消息，未读有效消息数用于客户端角标展示
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UID       int64     `gorm:"not null;index" json:"uid"`
	Type      int16     `gorm:"type:smallint;not null" json:"type"`
	Content   string    `gorm:"type:varchar(255);not null" json:"content"`
	Platform  string    `gorm:"type:varchar(255);default:all" json:"platform"`
	Status    int16     `gorm:"type:smallint;not null;default:1" json:"status"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Notification) TableName() string {
	return "notices"
}
