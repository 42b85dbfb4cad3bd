package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lightgraph-rag/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByIDAndGroupID(id, groupID string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND group_id = ?", id, groupID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByGroupID(groupID string) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("group_id = ?", groupID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) CountByGroupID(groupID string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Document{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return count, nil
}
