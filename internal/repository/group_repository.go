package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lightgraph-rag/internal/model"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(group *model.Group) error {
	if err := r.db.Create(group).Error; err != nil {
		return fmt.Errorf("create group failed: %w", err)
	}
	return nil
}

func (r *GroupRepository) GetByID(id string) (*model.Group, error) {
	var group model.Group
	if err := r.db.Where("id = ?", id).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group failed: %w", err)
	}
	return &group, nil
}

func (r *GroupRepository) GetByName(name string) (*model.Group, error) {
	var group model.Group
	if err := r.db.Where("name = ?", name).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group by name failed: %w", err)
	}
	return &group, nil
}

func (r *GroupRepository) List() ([]model.Group, error) {
	var groups []model.Group
	if err := r.db.Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups failed: %w", err)
	}
	return groups, nil
}

// Update persists name, description, and updated_at.
func (r *GroupRepository) Update(group *model.Group) error {
	err := r.db.Model(group).
		Select("name", "description", "updated_at").
		Updates(group).Error
	if err != nil {
		return fmt.Errorf("update group failed: %w", err)
	}
	return nil
}

// Delete removes the group row; documents, conversations, and messages
// go with it through the cascading foreign keys.
func (r *GroupRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Group{}).Error; err != nil {
		return fmt.Errorf("delete group failed: %w", err)
	}
	return nil
}
