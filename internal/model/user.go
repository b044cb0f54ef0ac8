package model

import "time"

// User 用户，phone 同时作为推送别名使用，核心流程只读
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(32);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(11);not null;uniqueIndex" json:"phone"`
	Password  string    `gorm:"type:varchar(64);not null" json:"-"`
	Nickname  string    `gorm:"type:varchar(32)" json:"nickname"`
	Avatar    string    `gorm:"type:varchar(255)" json:"avatar"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
