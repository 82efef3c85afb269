package model

import (
	"time"
)

// Comment 讨论节点，最多两层：根评论与其直接回复
type Comment struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	ParentID           *int64     `gorm:"index" json:"parent_id,string,omitempty"`
	AuthorID           string     `gorm:"index;not null;type:varchar(64)" json:"author_id"`
	SubjectID          string     `gorm:"index;not null;type:varchar(64)" json:"subject_id"`
	Title              string     `gorm:"type:varchar(255)" json:"title,omitempty"` // 仅根评论
	Content            string     `gorm:"type:text;not null" json:"content"`
	HasSpoilers        bool       `gorm:"not null;default:false" json:"has_spoilers"`
	TimestampReference *int       `json:"timestamp_reference,omitempty"` // 秒
	IsHighlighted      bool       `gorm:"not null;default:false" json:"is_highlighted"`
	CreatedAt          time.Time  `json:"created_at"`
	EditedAt           *time.Time `json:"edited_at,omitempty"`

	// 删除根评论时由数据库级联删除回复
	Replies []*Comment `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}
