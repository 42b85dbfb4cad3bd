package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/repository"
)

// QueryService runs one-shot retrieval against a group's engine
// instance, buffered or streamed. It persists nothing.
type QueryService struct {
	groupRepo *repository.GroupRepository
	registry  *engine.Registry
	log       *zap.Logger
}

// QueryResult wraps the engine's answer with the request parameters.
type QueryResult struct {
	Query    string `json:"query"`
	Mode     string `json:"mode"`
	Response string `json:"response"`
	GroupID  string `json:"group_id"`
}

func NewQueryService(groupRepo *repository.GroupRepository, registry *engine.Registry, log *zap.Logger) *QueryService {
	return &QueryService{groupRepo: groupRepo, registry: registry, log: log}
}

func (s *QueryService) Query(ctx context.Context, groupID, query, mode string) (*QueryResult, error) {
	mode, eng, err := s.prepare(ctx, groupID, query, mode)
	if err != nil {
		return nil, err
	}

	response, err := eng.Query(ctx, query, engine.QueryParams{Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("engine query failed: %w", err)
	}
	return &QueryResult{
		Query:    query,
		Mode:     mode,
		Response: response,
		GroupID:  groupID,
	}, nil
}

// QueryStream returns a single-pass chunk stream. The caller owns the
// stream and must Close it; abandoning it mid-flight releases the
// engine-side producer.
func (s *QueryService) QueryStream(ctx context.Context, groupID, query, mode string) (engine.Stream, error) {
	mode, eng, err := s.prepare(ctx, groupID, query, mode)
	if err != nil {
		return nil, err
	}

	stream, err := eng.QueryStream(ctx, query, engine.QueryParams{Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("engine query stream failed: %w", err)
	}
	return stream, nil
}

func (s *QueryService) prepare(ctx context.Context, groupID, query, mode string) (string, engine.Engine, error) {
	if query == "" {
		return "", nil, ErrInvalidInput
	}
	mode, err := NormalizeMode(mode)
	if err != nil {
		return "", nil, err
	}

	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		return "", nil, err
	}
	if group == nil {
		return "", nil, ErrGroupNotFound
	}

	eng, err := s.registry.Resolve(ctx, groupID)
	if err != nil {
		return "", nil, mapEngineErr(err)
	}
	return mode, eng, nil
}
