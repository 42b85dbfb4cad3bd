package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is immutable once created. The auto-increment ID doubles as
// the insertion-order tiebreaker when created_at timestamps collide.
// QueryMode is set only on assistant messages.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID string        `gorm:"size:32;not null;index" json:"conversation_id"`
	Conversation   *Conversation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Role           string        `gorm:"size:16;not null" json:"role"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	QueryMode      string        `gorm:"size:16" json:"query_mode,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
