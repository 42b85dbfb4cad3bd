package model

import "time"

// Document is write-once metadata for text inserted into a group's
// knowledge base. ContentLength counts characters of extracted text.
type Document struct {
	ID            string    `gorm:"primaryKey;size:32" json:"id"`
	GroupID       string    `gorm:"size:32;not null;index" json:"group_id"`
	Group         *Group    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Filename      string    `gorm:"size:256;not null" json:"filename"`
	ContentLength int       `gorm:"not null" json:"content_length"`
	CreatedAt     time.Time `json:"created_at"`
}
