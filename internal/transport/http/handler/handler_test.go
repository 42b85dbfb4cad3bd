package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/model"
	"lightgraph-rag/internal/repository"
)

// stubEngine answers every query with a canned response so handler
// behavior can be asserted end to end without a model backend.
type stubEngine struct {
	answer       string
	streamChunks []string
}

func (s *stubEngine) Insert(ctx context.Context, text string) error { return nil }

func (s *stubEngine) Query(ctx context.Context, query string, params engine.QueryParams) (string, error) {
	return s.answer, nil
}

func (s *stubEngine) QueryStream(ctx context.Context, query string, params engine.QueryParams) (engine.Stream, error) {
	return &stubStream{chunks: s.streamChunks}, nil
}

func (s *stubEngine) Finalize() error { return nil }

type stubStream struct {
	chunks []string
	pos    int
}

func (s *stubStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	return "", io.EOF
}

func (s *stubStream) Close() error { return nil }

// stubModelLister reports a fixed set of loaded models.
type stubModelLister struct {
	models []string
}

func (s stubModelLister) ListRunningModels(ctx context.Context) ([]string, error) {
	return s.models, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubEngine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "metadata.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Group{}, &model.Document{}, &model.Conversation{}, &model.Message{}))

	stub := &stubEngine{answer: "stub answer", streamChunks: []string{"stub ", "answer"}}
	registry := engine.NewRegistry(t.TempDir(), func(ctx context.Context, groupID, workingDir string) (engine.Engine, error) {
		return stub, nil
	}, zap.NewNop())

	log := zap.NewNop()
	groupRepo := repository.NewGroupRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	router := gin.New()
	RegisterRoutes(router,
		NewHealthHandler(app.NewHealthService(
			stubModelLister{models: []string{"chat-model", "embed-model"}},
			"chat-model", "embed-model", "0.1.0", time.Second, log)),
		NewGroupHandler(app.NewGroupService(groupRepo, docRepo, registry, nil, log)),
		NewDocumentHandler(app.NewDocumentService(groupRepo, docRepo, registry, nil, log)),
		NewQueryHandler(app.NewQueryService(groupRepo, registry, log)),
		NewConversationHandler(app.NewConversationService(
			groupRepo, convRepo, messageRepo, registry, nil, nil, 5, log)),
	)

	return router, stub
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createGroup(t *testing.T, router *gin.Engine, name string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/groups", gin.H{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody(t, rec)["id"].(string)
}

func TestHealthReportsLoadedModels(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["models_loaded"])
}

func TestCreateGroupThenDuplicateName(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/groups", gin.H{"name": "Acme"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/groups", gin.H{"name": "Acme"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "already exists")
}

func TestGroupCRUD(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "crud")

	rec := doJSON(t, router, http.MethodGet, "/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])

	rec = doJSON(t, router, http.MethodPatch, "/groups/"+id, gin.H{"description": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", decodeBody(t, rec)["description"])

	rec = doJSON(t, router, http.MethodDelete, "/groups/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/groups/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInsertDocumentRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "T1")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/documents", gin.H{"content": "hello world"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 11, decodeBody(t, rec)["content_length"])

	rec = doJSON(t, router, http.MethodGet, "/groups/"+id+"/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["total"])
	docs := body["documents"].([]any)
	assert.EqualValues(t, 11, docs[0].(map[string]any)["content_length"])
}

func TestUploadDocument(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "uploads")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/groups/"+id+"/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "notes.txt", body["filename"])
	assert.EqualValues(t, 13, body["content_length"])
}

func TestUploadUnsupportedFileType(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "uploads")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "binary.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x4d, 0x5a})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/groups/"+id+"/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "unsupported file type")
}

func TestChatReturnsBothMessages(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "T2")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations", gin.H{"title": "C1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations/"+convID+"/chat", gin.H{"message": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	userMsg := body["user_message"].(map[string]any)
	assistantMsg := body["assistant_message"].(map[string]any)
	assert.Equal(t, "hi", userMsg["content"])
	assert.NotEmpty(t, assistantMsg["content"])
	assert.Equal(t, "mix", assistantMsg["query_mode"])
}

func TestQueryUnknownGroup(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/groups/nope/query", gin.H{"query": "q"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "not found")
}

func TestQueryStreamUnknownGroupReportsErrorEvent(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/groups/nope/query/stream", gin.H{"query": "q"})
	// Headers are committed before group resolution; failures arrive as
	// a terminal error event on an otherwise successful response.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "not found")
	assert.NotContains(t, body, "event: done")
}

func TestQueryStreamHappyPath(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "streamer")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/query/stream", gin.H{"query": "q", "mode": "hybrid"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "event: chunk\ndata: stub \n\n")
	assert.Contains(t, body, "event: chunk\ndata: answer\n\n")
	require.Contains(t, body, "event: done")
	assert.Less(t, strings.Index(body, "event: chunk"), strings.Index(body, "event: done"))
	assert.Contains(t, body, "\"mode\":\"hybrid\"")
	assert.Contains(t, body, "\"group_id\":\""+id+"\"")
}

func TestQueryStreamFlagOnBufferedEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "flagged")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/query", gin.H{"query": "q", "stream": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: done")
}

func TestChatStreamFlag(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "chat-stream")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations", gin.H{})
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations/"+convID+"/chat",
		gin.H{"message": "hi", "stream": true})
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "event: chunk")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, "\"conversation_id\":\""+convID+"\"")

	// The streamed turn was persisted.
	rec = doJSON(t, router, http.MethodGet, "/groups/"+id+"/conversations/"+convID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decodeBody(t, rec)["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "stub answer", messages[1].(map[string]any)["content"])
}

func TestChatInvalidMode(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "modes")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations", gin.H{})
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations/"+convID+"/chat",
		gin.H{"message": "hi", "mode": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteConversation(t *testing.T) {
	router, _ := newTestRouter(t)
	id := createGroup(t, router, "cleanup")

	rec := doJSON(t, router, http.MethodPost, "/groups/"+id+"/conversations", gin.H{"title": "temp"})
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodDelete, "/groups/"+id+"/conversations/"+convID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/groups/"+id+"/conversations/"+convID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
