package model

import "time"

// Conversation groups an ordered sequence of messages within a group.
// UpdatedAt is bumped on every new message.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	GroupID   string    `gorm:"size:32;not null;index" json:"group_id"`
	Group     *Group    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MessageCount int64 `gorm:"-" json:"message_count"`
}
