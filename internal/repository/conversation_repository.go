package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lightgraph-rag/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conversation *model.Conversation) error {
	if err := r.db.Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByIDAndGroupID(id, groupID string) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.Where("id = ? AND group_id = ?", id, groupID).First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}

func (r *ConversationRepository) ListByGroupID(groupID string) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := r.db.Where("group_id = ?", groupID).Order("updated_at DESC").Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return conversations, nil
}

// Delete removes the conversation row; its messages cascade.
func (r *ConversationRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}
