package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/model"
	"lightgraph-rag/internal/platform/rabbitmq"
	"lightgraph-rag/internal/repository"
)

const emptyAnswerFallback = "The model returned an empty response."

// HistoryCache is the optional redis-backed cache for conversation
// reads. A nil cache disables caching without changing behavior.
type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID string) error
	MarkDirty(ctx context.Context, conversationID string) error
	IsDirty(ctx context.Context, conversationID string) (bool, error)
}

// ConversationService runs turn-taking chat against a group's engine.
// A chat turn persists the user message first; the assistant message
// and the conversation's recency bump land together afterwards. A user
// turn is never rolled back.
type ConversationService struct {
	groupRepo       *repository.GroupRepository
	convRepo        *repository.ConversationRepository
	messageRepo     *repository.MessageRepository
	registry        *engine.Registry
	historyCache    HistoryCache
	publisher       EventPublisher
	maxHistoryTurns int
	log             *zap.Logger
}

// ChatResult carries both messages created by one successful turn.
type ChatResult struct {
	UserMessage      model.Message `json:"user_message"`
	AssistantMessage model.Message `json:"assistant_message"`
}

// ConversationHistory is a conversation with its full ordered message
// list.
type ConversationHistory struct {
	Conversation model.Conversation `json:"conversation"`
	Messages     []model.Message    `json:"messages"`
}

func NewConversationService(
	groupRepo *repository.GroupRepository,
	convRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	registry *engine.Registry,
	historyCache HistoryCache,
	publisher EventPublisher,
	maxHistoryTurns int,
	log *zap.Logger,
) *ConversationService {
	if maxHistoryTurns <= 0 {
		maxHistoryTurns = 5
	}
	return &ConversationService{
		groupRepo:       groupRepo,
		convRepo:        convRepo,
		messageRepo:     messageRepo,
		registry:        registry,
		historyCache:    historyCache,
		publisher:       publisher,
		maxHistoryTurns: maxHistoryTurns,
		log:             log,
	}
}

func (s *ConversationService) Create(ctx context.Context, groupID, title string) (*model.Conversation, error) {
	if err := s.verifyGroup(groupID); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Conversation"
	}

	conversation := &model.Conversation{
		ID:      model.NewID(),
		GroupID: groupID,
		Title:   title,
	}
	if err := s.convRepo.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ConversationService) List(ctx context.Context, groupID string) ([]model.Conversation, error) {
	if err := s.verifyGroup(groupID); err != nil {
		return nil, err
	}

	conversations, err := s.convRepo.ListByGroupID(groupID)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		count, err := s.messageRepo.CountByConversationID(conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].MessageCount = count
	}
	return conversations, nil
}

func (s *ConversationService) GetHistory(ctx context.Context, groupID, conversationID string) (*ConversationHistory, error) {
	conversation, err := s.getConversation(groupID, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.loadMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	conversation.MessageCount = int64(len(messages))
	return &ConversationHistory{
		Conversation: *conversation,
		Messages:     messages,
	}, nil
}

func (s *ConversationService) Delete(ctx context.Context, groupID, conversationID string) error {
	if _, err := s.getConversation(groupID, conversationID); err != nil {
		return err
	}
	if err := s.convRepo.Delete(conversationID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, conversationID)
	}
	return nil
}

// Chat runs one buffered turn. The engine failure path leaves the user
// message persisted and writes no assistant message; a retry creates a
// new user message.
func (s *ConversationService) Chat(ctx context.Context, groupID, conversationID, message, mode string) (*ChatResult, error) {
	mode, userMessage, history, eng, err := s.beginTurn(ctx, groupID, conversationID, message, mode)
	if err != nil {
		return nil, err
	}

	answer, err := eng.Query(ctx, message, engine.QueryParams{Mode: mode, History: history})
	if err != nil {
		return nil, fmt.Errorf("engine query failed: %w", err)
	}

	assistantMessage, err := s.completeTurn(ctx, groupID, conversationID, answer, mode)
	if err != nil {
		return nil, err
	}
	return &ChatResult{
		UserMessage:      *userMessage,
		AssistantMessage: *assistantMessage,
	}, nil
}

// ChatStream runs one streamed turn, forwarding each chunk through
// onChunk as it arrives. The assistant message is persisted only after
// the engine stream is cleanly exhausted; cancellation or a mid-stream
// error discards the accumulated text.
func (s *ConversationService) ChatStream(ctx context.Context, groupID, conversationID, message, mode string, onChunk func(chunk string) error) error {
	mode, _, history, eng, err := s.beginTurn(ctx, groupID, conversationID, message, mode)
	if err != nil {
		return err
	}

	stream, err := eng.QueryStream(ctx, message, engine.QueryParams{Mode: mode, History: history})
	if err != nil {
		return fmt.Errorf("engine query stream failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("engine stream failed: %w", err)
		}
		full.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			// Client gone; drop the partial answer.
			return err
		}
	}

	if _, err := s.completeTurn(ctx, groupID, conversationID, full.String(), mode); err != nil {
		return err
	}
	return nil
}

// beginTurn validates the turn, persists the user message in its own
// transaction, and assembles the bounded history for the engine call.
func (s *ConversationService) beginTurn(ctx context.Context, groupID, conversationID, message, mode string) (string, *model.Message, []engine.HistoryMessage, engine.Engine, error) {
	if strings.TrimSpace(message) == "" {
		return "", nil, nil, nil, ErrInvalidInput
	}
	mode, err := NormalizeMode(mode)
	if err != nil {
		return "", nil, nil, nil, err
	}

	if _, err := s.getConversation(groupID, conversationID); err != nil {
		return "", nil, nil, nil, err
	}

	userMessage := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        message,
		CreatedAt:      time.Now(),
	}
	s.invalidateHistory(ctx, conversationID)
	if err := s.messageRepo.Create(userMessage); err != nil {
		return "", nil, nil, nil, err
	}

	recent, err := s.messageRepo.ListRecentByConversationID(conversationID, s.maxHistoryTurns*2)
	if err != nil {
		return "", nil, nil, nil, err
	}
	history := make([]engine.HistoryMessage, 0, len(recent))
	for _, m := range recent {
		history = append(history, engine.HistoryMessage{Role: m.Role, Content: m.Content})
	}

	eng, err := s.registry.Resolve(ctx, groupID)
	if err != nil {
		return "", nil, nil, nil, mapEngineErr(err)
	}
	return mode, userMessage, history, eng, nil
}

// completeTurn persists the assistant message and bumps the
// conversation's recency in one transaction.
func (s *ConversationService) completeTurn(ctx context.Context, groupID, conversationID, answer, mode string) (*model.Message, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyAnswerFallback
	}

	assistantMessage := &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        answer,
		QueryMode:      mode,
		CreatedAt:      time.Now(),
	}
	s.invalidateHistory(ctx, conversationID)
	if err := s.messageRepo.CreateWithConversationTouch(assistantMessage); err != nil {
		return nil, err
	}

	s.publish(ctx, rabbitmq.Event{
		Type:           rabbitmq.EventChatCompleted,
		GroupID:        groupID,
		ConversationID: conversationID,
		Mode:           mode,
	})
	return assistantMessage, nil
}

func (s *ConversationService) loadMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messageRepo.ListByConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

func (s *ConversationService) invalidateHistory(ctx context.Context, conversationID string) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, conversationID)
	_ = s.historyCache.DeleteHistory(ctx, conversationID)
}

func (s *ConversationService) verifyGroup(groupID string) error {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	return nil
}

func (s *ConversationService) getConversation(groupID, conversationID string) (*model.Conversation, error) {
	if err := s.verifyGroup(groupID); err != nil {
		return nil, err
	}
	conversation, err := s.convRepo.GetByIDAndGroupID(conversationID, groupID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *ConversationService) publish(ctx context.Context, event rabbitmq.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish event failed", zap.String("type", event.Type), zap.Error(err))
	}
}
