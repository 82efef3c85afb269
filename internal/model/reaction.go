package model

import (
	"time"
)

type ReactionType string

const (
	ReactionInsightful    ReactionType = "insightful"
	ReactionControversial ReactionType = "controversial"
	ReactionBrilliant     ReactionType = "brilliant"
)

// ReactionTypes lists every accepted reaction type in display order.
var ReactionTypes = []ReactionType{ReactionInsightful, ReactionControversial, ReactionBrilliant}

func (t ReactionType) Valid() bool {
	for _, known := range ReactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Reaction 每个 (user_id, comment_id) 最多一条，由唯一索引保证
type Reaction struct {
	ID        int64        `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID    string       `gorm:"not null;type:varchar(64);uniqueIndex:idx_reaction_user_comment,priority:1" json:"user_id"`
	CommentID int64        `gorm:"not null;uniqueIndex:idx_reaction_user_comment,priority:2;index" json:"comment_id,string"`
	Type      ReactionType `gorm:"not null;type:varchar(32)" json:"type"`
	CreatedAt time.Time    `json:"created_at"`

	Comment *Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Reaction) TableName() string {
	return "reactions"
}
