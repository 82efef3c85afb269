package model

import (
	"time"
)

// InviteCode 单次使用、带过期时间的邀请码
// UsedBy 与 UsedAt 同时为空或同时非空
type InviteCode struct {
	Code      string     `gorm:"primaryKey;type:varchar(32)" json:"code"`
	CreatedBy *string    `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	UsedBy    *string    `gorm:"type:varchar(64);index" json:"used_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
}

func (InviteCode) TableName() string {
	return "invite_codes"
}

// Redeemable reports whether the code is unused and not yet expired at now.
func (i *InviteCode) Redeemable(now time.Time) bool {
	return i.UsedBy == nil && i.ExpiresAt.After(now)
}
