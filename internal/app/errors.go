package app

import (
	"errors"
	"fmt"

	"lightgraph-rag/internal/engine"
)

// Service-layer error taxonomy. Handlers map these to HTTP statuses
// with errors.Is; lower layers wrap them with context.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrGroupNotFound        = errors.New("group not found")
	ErrGroupExists          = errors.New("group name already exists")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEngineNotReady       = errors.New("engine not ready")
)

// Retrieval modes accepted by the query and chat operations. The mode
// is validated here and passed through to the engine uninterpreted.
var queryModes = map[string]struct{}{
	engine.ModeNaive:  {},
	engine.ModeLocal:  {},
	engine.ModeGlobal: {},
	engine.ModeHybrid: {},
	engine.ModeMix:    {},
}

const defaultQueryMode = engine.ModeMix

// NormalizeMode defaults an empty mode to "mix" and rejects values
// outside the recognized set.
func NormalizeMode(mode string) (string, error) {
	if mode == "" {
		return defaultQueryMode, nil
	}
	if _, ok := queryModes[mode]; !ok {
		return "", fmt.Errorf("%w: unknown query mode %q", ErrInvalidInput, mode)
	}
	return mode, nil
}

// mapEngineErr translates registry errors into the service taxonomy.
// A missing storage root means the group is gone (or was never
// provisioned), which callers observe as a plain not-found.
func mapEngineErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrStorageNotFound):
		return fmt.Errorf("%w: %v", ErrGroupNotFound, err)
	case errors.Is(err, engine.ErrNotReady):
		return fmt.Errorf("%w: %v", ErrEngineNotReady, err)
	default:
		return err
	}
}
