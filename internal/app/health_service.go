package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ModelLister reports which models the inference backend currently has
// loaded.
type ModelLister interface {
	ListRunningModels(ctx context.Context) ([]string, error)
}

// HealthService reports liveness plus whether the configured models are
// loaded on the backend. A backend failure degrades the report instead
// of failing it.
type HealthService struct {
	backend    ModelLister
	chatModel  string
	embedModel string
	version    string
	timeout    time.Duration
	log        *zap.Logger
}

type HealthResult struct {
	Status       string   `json:"status"`
	Service      string   `json:"service"`
	Version      string   `json:"version"`
	ModelsLoaded bool     `json:"models_loaded"`
	LoadedModels []string `json:"loaded_models"`
}

func NewHealthService(backend ModelLister, chatModel, embedModel, version string, timeout time.Duration, log *zap.Logger) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{
		backend:    backend,
		chatModel:  chatModel,
		embedModel: embedModel,
		version:    version,
		timeout:    timeout,
		log:        log,
	}
}

func (s *HealthService) Check(ctx context.Context) HealthResult {
	result := HealthResult{
		Status:       "healthy",
		Service:      "lightgraph-rag",
		Version:      s.version,
		LoadedModels: []string{},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	models, err := s.backend.ListRunningModels(ctx)
	if err != nil {
		s.log.Warn("list running models failed", zap.Error(err))
		return result
	}
	result.LoadedModels = models

	loaded := make(map[string]struct{}, len(models))
	for _, m := range models {
		loaded[m] = struct{}{}
	}
	_, chatOK := loaded[s.chatModel]
	_, embedOK := loaded[s.embedModel]
	result.ModelsLoaded = chatOK && embedOK
	return result
}
