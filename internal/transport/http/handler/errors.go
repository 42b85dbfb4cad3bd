package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/transport/http/response"
)

// writeError maps the service error taxonomy onto HTTP statuses. Every
// handler funnels non-streaming failures through here so the mapping
// stays in one place.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrGroupNotFound),
		errors.Is(err, app.ErrDocumentNotFound),
		errors.Is(err, app.ErrConversationNotFound):
		response.Detail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrGroupExists):
		response.Detail(c, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		response.Detail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEngineNotReady):
		response.Detail(c, http.StatusServiceUnavailable, err.Error())
	default:
		response.Detail(c, http.StatusInternalServerError, "internal server error")
	}
}
