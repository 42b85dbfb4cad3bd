package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lightgraph-rag/internal/app"
)

type HealthHandler struct {
	healthService *app.HealthService
}

func NewHealthHandler(healthService *app.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthService.Check(c.Request.Context()))
}
