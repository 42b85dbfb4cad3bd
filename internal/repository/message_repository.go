package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"lightgraph-rag/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// CreateWithConversationTouch writes the message and bumps the owning
// conversation's updated_at in one transaction.
func (r *MessageRepository) CreateWithConversationTouch(message *model.Message) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return fmt.Errorf("create message with conversation touch failed: %w", err)
	}
	return nil
}

// ListByConversationID returns all messages oldest first; equal
// timestamps fall back to insertion order via the auto-increment id.
func (r *MessageRepository) ListByConversationID(conversationID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentByConversationID returns the newest limit messages in
// oldest-first order.
func (r *MessageRepository) ListRecentByConversationID(conversationID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) CountByConversationID(conversationID string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}
