package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lightgraph-rag/internal/ai"
)

const embeddingBatchSize = 10

var errFinalized = errors.New("engine instance finalized")

// Config carries the tuning parameters for a built-in engine instance.
type Config struct {
	WorkingDir    string
	ChatModel     string
	EmbedModel    string
	ContextWindow int
	EmbeddingDim  int
	TopK          int
	ChunkSize     int
	ChunkOverlap  int
}

// builtinEngine is a retrieval engine rooted at one group's working
// directory: overlapping rune-window chunks, backend embeddings, cosine
// top-k retrieval, and mode-dependent prompt assembly.
type builtinEngine struct {
	cfg     Config
	backend Backend

	mu        sync.Mutex
	store     *vectorStore
	finalized bool
}

// New builds an engine instance and performs its storage-initialization
// step by loading the chunk index from the working directory.
func New(cfg Config, backend Backend) (Engine, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 8
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}

	store, err := openVectorStore(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("initialize storage failed: %w", err)
	}
	return &builtinEngine{cfg: cfg, backend: backend, store: store}, nil
}

func (e *builtinEngine) Insert(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("insert text is empty")
	}

	chunks := chunkText(text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)

	var embeddings [][]float32
	for i := 0; i < len(chunks); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := e.backend.EmbedBatch(ctx, e.cfg.EmbedModel, chunks[i:end])
		if err != nil {
			return fmt.Errorf("embed chunks failed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(chunks) {
		return errors.New("embedding count mismatch")
	}

	records := make([]chunkRecord, len(chunks))
	for i := range chunks {
		records[i] = chunkRecord{Content: chunks[i], Embedding: embeddings[i]}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return errFinalized
	}
	return e.store.append(records)
}

func (e *builtinEngine) Query(ctx context.Context, query string, params QueryParams) (string, error) {
	messages, err := e.buildMessages(ctx, query, params)
	if err != nil {
		return "", err
	}
	answer, err := e.backend.Complete(ctx, e.cfg.ChatModel, messages, e.cfg.ContextWindow)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (e *builtinEngine) QueryStream(ctx context.Context, query string, params QueryParams) (Stream, error) {
	messages, err := e.buildMessages(ctx, query, params)
	if err != nil {
		return nil, err
	}

	return newChunkStream(ctx, func(streamCtx context.Context, emit func(string) error) error {
		_, err := e.backend.StreamComplete(streamCtx, e.cfg.ChatModel, messages, e.cfg.ContextWindow, emit)
		return err
	}), nil
}

func (e *builtinEngine) Finalize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalized = true
	e.store = nil
	return nil
}

func (e *builtinEngine) buildMessages(ctx context.Context, query string, params QueryParams) ([]ai.ChatMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query text is empty")
	}

	e.mu.Lock()
	if e.finalized {
		e.mu.Unlock()
		return nil, errFinalized
	}
	store := e.store
	indexed := store.len()
	e.mu.Unlock()

	var contextBlock string
	if indexed > 0 {
		queryEmb, err := e.backend.EmbedBatch(ctx, e.cfg.EmbedModel, []string{query})
		if err != nil {
			return nil, fmt.Errorf("embed query failed: %w", err)
		}

		e.mu.Lock()
		selected := store.topK(queryEmb[0], retrievalBreadth(params.Mode, e.cfg.TopK))
		e.mu.Unlock()

		var b strings.Builder
		for _, rec := range selected {
			b.WriteString("\n---\n")
			b.WriteString(rec.Content)
		}
		if b.Len() > 0 {
			b.WriteString("\n---")
		}
		contextBlock = b.String()
	}

	messages := make([]ai.ChatMessage, 0, len(params.History)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: systemPrompt(params.Mode, contextBlock),
	})
	for _, turn := range params.History {
		role := turn.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: query})
	return messages, nil
}

// retrievalBreadth widens the candidate set for the graph-flavored
// modes, which synthesize across relationships rather than answering
// from the closest chunks alone.
func retrievalBreadth(mode string, topK int) int {
	switch mode {
	case ModeNaive, ModeLocal:
		return topK
	default:
		return topK * 2
	}
}

func systemPrompt(mode, contextBlock string) string {
	var instruction string
	switch mode {
	case ModeNaive:
		instruction = "Answer using only the most similar passages below."
	case ModeLocal:
		instruction = "Focus on the specific entities mentioned in the question and the passages that describe them."
	case ModeGlobal:
		instruction = "Consider broad relationships and themes across all provided passages."
	case ModeHybrid:
		instruction = "Combine entity-level detail with the broader relationships across passages."
	default: // mix
		instruction = "Combine the knowledge relationships across passages with their literal content."
	}

	if contextBlock == "" {
		return "You are a helpful assistant. The knowledge base has no content yet; say so if the question requires it. " + instruction
	}
	return "You are a helpful assistant. Answer the user's question based only on the following context. " +
		"If the context does not contain enough information, say so. Do not make up facts. " +
		instruction + "\n\nContext:" + contextBlock
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}
