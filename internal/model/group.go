package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Group is an isolated unit of knowledge-base ownership. Each group owns
// a storage root directory used by its retrieval-engine instance.
type Group struct {
	ID          string    `gorm:"primaryKey;size:32" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"size:500;not null" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	DocumentCount int64 `gorm:"-" json:"document_count"`
}

// NewID returns a short opaque identifier, never reused.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
