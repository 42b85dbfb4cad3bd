package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/transport/http/response"
)

type GroupHandler struct {
	groupService *app.GroupService
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

func NewGroupHandler(groupService *app.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), app.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "total": len(groups)})
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groupService.Get(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Update(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	group, err := h.groupService.Update(c.Request.Context(), c.Param("group_id"), app.UpdateGroupInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groupService.Delete(c.Request.Context(), c.Param("group_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
