package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/model"
	"lightgraph-rag/internal/repository"
)

// stubEngine is the engine handed out by the test registry. Tests
// configure its canned answer, stream chunks, and failure modes.
type stubEngine struct {
	answer       string
	queryErr     error
	streamChunks []string
	streamErr    error

	inserted   []string
	lastParams engine.QueryParams
}

func (s *stubEngine) Insert(ctx context.Context, text string) error {
	s.inserted = append(s.inserted, text)
	return nil
}

func (s *stubEngine) Query(ctx context.Context, query string, params engine.QueryParams) (string, error) {
	s.lastParams = params
	if s.queryErr != nil {
		return "", s.queryErr
	}
	return s.answer, nil
}

func (s *stubEngine) QueryStream(ctx context.Context, query string, params engine.QueryParams) (engine.Stream, error) {
	s.lastParams = params
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubStream{chunks: s.streamChunks, err: s.streamErr}, nil
}

func (s *stubEngine) Finalize() error { return nil }

// stubStream replays canned chunks, then err or EOF.
type stubStream struct {
	chunks []string
	err    error
	pos    int
	closed bool
}

func (s *stubStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

// fakeHistoryCache is an in-memory HistoryCache double with call
// counters for asserting hit, miss, and invalidation behavior.
type fakeHistoryCache struct {
	histories map[string][]model.Message
	dirty     map[string]bool

	gets, sets, deletes, dirtyMarks int
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		histories: make(map[string][]model.Message),
		dirty:     make(map[string]bool),
	}
}

func (f *fakeHistoryCache) GetHistory(ctx context.Context, conversationID string) ([]model.Message, bool, error) {
	f.gets++
	messages, ok := f.histories[conversationID]
	return messages, ok, nil
}

func (f *fakeHistoryCache) SetHistory(ctx context.Context, conversationID string, messages []model.Message) error {
	f.sets++
	f.histories[conversationID] = messages
	return nil
}

func (f *fakeHistoryCache) DeleteHistory(ctx context.Context, conversationID string) error {
	f.deletes++
	delete(f.histories, conversationID)
	return nil
}

func (f *fakeHistoryCache) MarkDirty(ctx context.Context, conversationID string) error {
	f.dirtyMarks++
	f.dirty[conversationID] = true
	return nil
}

func (f *fakeHistoryCache) IsDirty(ctx context.Context, conversationID string) (bool, error) {
	return f.dirty[conversationID], nil
}

type testEnv struct {
	db       *gorm.DB
	registry *engine.Registry
	stub     *stubEngine

	groupRepo   *repository.GroupRepository
	convRepo    *repository.ConversationRepository
	messageRepo *repository.MessageRepository

	groups        *GroupService
	documents     *DocumentService
	queries       *QueryService
	conversations *ConversationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "metadata.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Group{}, &model.Document{}, &model.Conversation{}, &model.Message{}))

	stub := &stubEngine{answer: "stub answer"}
	registry := engine.NewRegistry(t.TempDir(), func(ctx context.Context, groupID, workingDir string) (engine.Engine, error) {
		return stub, nil
	}, zap.NewNop())

	log := zap.NewNop()
	groupRepo := repository.NewGroupRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	return &testEnv{
		db:          db,
		registry:    registry,
		stub:        stub,
		groupRepo:   groupRepo,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		groups:      NewGroupService(groupRepo, docRepo, registry, nil, log),
		documents:   NewDocumentService(groupRepo, docRepo, registry, nil, log),
		queries:     NewQueryService(groupRepo, registry, log),
		conversations: NewConversationService(
			groupRepo, convRepo, messageRepo, registry, nil, nil, 5, log),
	}
}

// newTestEnvWithCache swaps the conversation service for one backed by
// a fake history cache.
func newTestEnvWithCache(t *testing.T) (*testEnv, *fakeHistoryCache) {
	t.Helper()
	env := newTestEnv(t)
	cache := newFakeHistoryCache()
	env.conversations = NewConversationService(
		env.groupRepo, env.convRepo, env.messageRepo, env.registry, cache, nil, 5, zap.NewNop())
	return env, cache
}

func (e *testEnv) mustCreateGroup(t *testing.T, name string) *model.Group {
	t.Helper()
	group, err := e.groups.Create(context.Background(), CreateGroupInput{Name: name})
	require.NoError(t, err)
	return group
}

func (e *testEnv) mustCreateConversation(t *testing.T, groupID, title string) *model.Conversation {
	t.Helper()
	conversation, err := e.conversations.Create(context.Background(), groupID, title)
	require.NoError(t, err)
	return conversation
}

func (e *testEnv) messageCount(t *testing.T, conversationID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error)
	return count
}
