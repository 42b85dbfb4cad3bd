package app

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/model"
	"lightgraph-rag/internal/platform/rabbitmq"
	"lightgraph-rag/internal/repository"
)

// EventPublisher pushes best-effort domain events to the broker.
// Services treat a nil publisher as disabled.
type EventPublisher interface {
	Publish(ctx context.Context, event rabbitmq.Event) error
}

// GroupService owns the tenant lifecycle: metadata rows, per-group
// storage roots, and eviction of cached engine instances on delete.
type GroupService struct {
	groupRepo *repository.GroupRepository
	docRepo   *repository.DocumentRepository
	registry  *engine.Registry
	publisher EventPublisher
	log       *zap.Logger
}

type CreateGroupInput struct {
	Name        string
	Description string
}

type UpdateGroupInput struct {
	Name        *string
	Description *string
}

func NewGroupService(
	groupRepo *repository.GroupRepository,
	docRepo *repository.DocumentRepository,
	registry *engine.Registry,
	publisher EventPublisher,
	log *zap.Logger,
) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		docRepo:   docRepo,
		registry:  registry,
		publisher: publisher,
		log:       log,
	}
}

func (s *GroupService) Create(ctx context.Context, input CreateGroupInput) (*model.Group, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.groupRepo.GetByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrGroupExists
	}

	group := &model.Group{
		ID:          model.NewID(),
		Name:        name,
		Description: input.Description,
	}
	if err := s.groupRepo.Create(group); err != nil {
		return nil, err
	}

	// Idempotent: a leftover directory from a failed earlier delete is
	// not an error.
	if err := os.MkdirAll(s.registry.GroupDir(group.ID), 0o755); err != nil {
		return nil, err
	}

	s.log.Info("group created", zap.String("group_id", group.ID), zap.String("name", group.Name))
	return group, nil
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groupRepo.List()
	if err != nil {
		return nil, err
	}
	for i := range groups {
		count, err := s.docRepo.CountByGroupID(groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].DocumentCount = count
	}
	return groups, nil
}

func (s *GroupService) Get(ctx context.Context, groupID string) (*model.Group, error) {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	count, err := s.docRepo.CountByGroupID(groupID)
	if err != nil {
		return nil, err
	}
	group.DocumentCount = count
	return group, nil
}

func (s *GroupService) Update(ctx context.Context, groupID string, input UpdateGroupInput) (*model.Group, error) {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		if name != group.Name {
			other, err := s.groupRepo.GetByName(name)
			if err != nil {
				return nil, err
			}
			if other != nil {
				return nil, ErrGroupExists
			}
		}
		group.Name = name
	}
	if input.Description != nil {
		group.Description = *input.Description
	}
	group.UpdatedAt = time.Now()

	if err := s.groupRepo.Update(group); err != nil {
		return nil, err
	}
	return s.Get(ctx, groupID)
}

// Delete removes the metadata row first; storage-root removal and
// engine eviction are best-effort cleanup afterwards and never fail
// the operation.
func (s *GroupService) Delete(ctx context.Context, groupID string) error {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}

	if err := s.groupRepo.Delete(groupID); err != nil {
		return err
	}

	if err := os.RemoveAll(s.registry.GroupDir(groupID)); err != nil {
		s.log.Warn("remove group storage failed",
			zap.String("group_id", groupID),
			zap.Error(err))
	}
	s.registry.Evict(groupID)

	s.publish(ctx, rabbitmq.Event{Type: rabbitmq.EventGroupDeleted, GroupID: groupID})
	s.log.Info("group deleted", zap.String("group_id", groupID))
	return nil
}

func (s *GroupService) publish(ctx context.Context, event rabbitmq.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish event failed", zap.String("type", event.Type), zap.Error(err))
	}
}
