package models

import (
	"time"
)

// 用户角色
const (
	RoleAdmin    = "admin"
	RoleSubAdmin = "subadmin"
	RoleUser     = "user"
)

// User 对应 users 表
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID         string `gorm:"type:varchar(36);unique;not null" json:"uuid"`
	Username     string `gorm:"type:varchar(64);unique;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // - 表示不输出到 JSON
	Email        string `gorm:"type:varchar(255);unique;not null" json:"email"`
	Role         string `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Status       uint8  `gorm:"type:tinyint unsigned;not null;default:1" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}

// IsReviewer 判断用户是否具备审批/复审权限
func (u *User) IsReviewer() bool {
	return u.Role == RoleAdmin || u.Role == RoleSubAdmin
}
