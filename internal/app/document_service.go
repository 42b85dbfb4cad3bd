package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/model"
	"lightgraph-rag/internal/platform/rabbitmq"
	"lightgraph-rag/internal/repository"
)

// DocumentService inserts extracted text into a group's engine instance
// and keeps write-once metadata for every insertion.
type DocumentService struct {
	groupRepo *repository.GroupRepository
	docRepo   *repository.DocumentRepository
	registry  *engine.Registry
	publisher EventPublisher
	log       *zap.Logger
}

func NewDocumentService(
	groupRepo *repository.GroupRepository,
	docRepo *repository.DocumentRepository,
	registry *engine.Registry,
	publisher EventPublisher,
	log *zap.Logger,
) *DocumentService {
	return &DocumentService{
		groupRepo: groupRepo,
		docRepo:   docRepo,
		registry:  registry,
		publisher: publisher,
		log:       log,
	}
}

// Insert indexes the content in the group's engine, then records the
// document row. ContentLength counts characters of the extracted text.
func (s *DocumentService) Insert(ctx context.Context, groupID, content, filename string) (*model.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(filename) == "" {
		filename = "uploaded_file.txt"
	}

	if err := s.verifyGroup(groupID); err != nil {
		return nil, err
	}

	eng, err := s.registry.Resolve(ctx, groupID)
	if err != nil {
		return nil, mapEngineErr(err)
	}
	if err := eng.Insert(ctx, content); err != nil {
		return nil, fmt.Errorf("engine insert failed: %w", err)
	}

	doc := &model.Document{
		ID:            model.NewID(),
		GroupID:       groupID,
		Filename:      filename,
		ContentLength: utf8.RuneCountInString(content),
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	s.publish(ctx, rabbitmq.Event{
		Type:       rabbitmq.EventDocumentInserted,
		GroupID:    groupID,
		DocumentID: doc.ID,
	})
	s.log.Info("document inserted",
		zap.String("group_id", groupID),
		zap.String("document_id", doc.ID),
		zap.Int("content_length", doc.ContentLength))
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, groupID string) ([]model.Document, error) {
	if err := s.verifyGroup(groupID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByGroupID(groupID)
}

func (s *DocumentService) Get(ctx context.Context, groupID, documentID string) (*model.Document, error) {
	if err := s.verifyGroup(groupID); err != nil {
		return nil, err
	}
	doc, err := s.docRepo.GetByIDAndGroupID(documentID, groupID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) verifyGroup(groupID string) error {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	return nil
}

func (s *DocumentService) publish(ctx context.Context, event rabbitmq.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish event failed", zap.String("type", event.Type), zap.Error(err))
	}
}
