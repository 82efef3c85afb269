package model

import (
	"time"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User 用户模型，由邀请码兑换创建
type User struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserName string `gorm:"column:username;uniqueIndex;not null;type:varchar(64)" json:"username"`
	Email    string `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	Role     string `gorm:"not null;default:member;type:varchar(16)" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
