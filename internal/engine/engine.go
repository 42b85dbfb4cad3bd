package engine

import (
	"context"

	"lightgraph-rag/internal/ai"
)

// Modes select the retrieval strategy. They are validated at the
// orchestration layer and interpreted only inside the engine.
const (
	ModeNaive  = "naive"
	ModeLocal  = "local"
	ModeGlobal = "global"
	ModeHybrid = "hybrid"
	ModeMix    = "mix"
)

// HistoryMessage is one prior turn passed as conversational context.
type HistoryMessage struct {
	Role    string
	Content string
}

// QueryParams carry the retrieval mode and optional conversation history.
type QueryParams struct {
	Mode    string
	History []HistoryMessage
}

// Engine is an initialized handle into one group's isolated knowledge
// base. Instances are single-group-exclusive and must be finalized when
// evicted.
type Engine interface {
	Insert(ctx context.Context, text string) error
	Query(ctx context.Context, query string, params QueryParams) (string, error)
	QueryStream(ctx context.Context, query string, params QueryParams) (Stream, error)
	Finalize() error
}

// Stream is a single-pass, forward-only chunk producer. Recv returns
// io.EOF after the final chunk. Close releases producer resources and
// must be safe to call at any point, including mid-stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Backend is the slice of the model-inference client the engine needs.
type Backend interface {
	Complete(ctx context.Context, model string, messages []ai.ChatMessage, numCtx int) (string, error)
	StreamComplete(ctx context.Context, model string, messages []ai.ChatMessage, numCtx int, onChunk func(chunk string) error) (string, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

var _ Backend = (*ai.OllamaClient)(nil)
