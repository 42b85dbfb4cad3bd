package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/transport/http/response"
	"lightgraph-rag/internal/transport/http/sse"
)

type ConversationHandler struct {
	conversationService *app.ConversationService
}

type CreateConversationRequest struct {
	Title string `json:"title" binding:"max=200"`
}

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
	Mode    string `json:"mode" binding:"omitempty,oneof=naive local global hybrid mix"`
	Stream  bool   `json:"stream"`
}

func NewConversationHandler(conversationService *app.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	conversation, err := h.conversationService.Create(c.Request.Context(), c.Param("group_id"), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

func (h *ConversationHandler) List(c *gin.Context) {
	conversations, err := h.conversationService.List(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations, "total": len(conversations)})
}

func (h *ConversationHandler) GetHistory(c *gin.Context) {
	history, err := h.conversationService.GetHistory(c.Request.Context(), c.Param("group_id"), c.Param("conversation_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *ConversationHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.Stream {
		h.chatStream(c, req)
		return
	}

	result, err := h.conversationService.Chat(c.Request.Context(), c.Param("group_id"), c.Param("conversation_id"), req.Message, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ConversationHandler) chatStream(c *gin.Context, req ChatRequest) {
	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.Detail(c, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	mode, err := app.NormalizeMode(req.Mode)
	if err != nil {
		_ = writer.Error(err.Error())
		return
	}

	groupID := c.Param("group_id")
	conversationID := c.Param("conversation_id")
	err = h.conversationService.ChatStream(c.Request.Context(), groupID, conversationID, req.Message, mode,
		func(chunk string) error {
			return writer.Chunk(chunk)
		})
	if err != nil {
		_ = writer.Error(err.Error())
		return
	}

	_ = writer.Done(gin.H{
		"group_id":        groupID,
		"conversation_id": conversationID,
		"mode":            mode,
	})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.conversationService.Delete(c.Request.Context(), c.Param("group_id"), c.Param("conversation_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
