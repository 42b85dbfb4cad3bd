package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/transport/http/response"
	"lightgraph-rag/internal/transport/http/sse"
)

type QueryHandler struct {
	queryService *app.QueryService
}

type QueryRequest struct {
	Query  string `json:"query" binding:"required"`
	Mode   string `json:"mode" binding:"omitempty,oneof=naive local global hybrid mix"`
	Stream bool   `json:"stream"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if req.Stream {
		h.stream(c, req)
		return
	}

	result, err := h.queryService.Query(c.Request.Context(), c.Param("group_id"), req.Query, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *QueryHandler) QueryStream(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	h.stream(c, req)
}

// stream commits SSE headers before resolving the group, so not-found
// and not-ready surface as terminal error events rather than HTTP
// statuses.
func (h *QueryHandler) stream(c *gin.Context, req QueryRequest) {
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

	stream, err := h.queryService.QueryStream(c.Request.Context(), c.Param("group_id"), req.Query, mode)
	if err != nil {
		_ = writer.Error(err.Error())
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = writer.Error(err.Error())
			return
		}
		if err := writer.Chunk(chunk); err != nil {
			return
		}
	}

	_ = writer.Done(gin.H{
		"query":    req.Query,
		"mode":     mode,
		"group_id": c.Param("group_id"),
	})
}
