package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/pkg/extract"
	"lightgraph-rag/internal/transport/http/response"
)

const maxUploadBytes = 10 << 20

type DocumentHandler struct {
	documentService *app.DocumentService
}

type InsertDocumentRequest struct {
	Content  string `json:"content" binding:"required"`
	Filename string `json:"filename"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) Insert(c *gin.Context) {
	var req InsertDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	doc, err := h.documentService.Insert(c.Request.Context(), c.Param("group_id"), req.Content, req.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Detail(c, http.StatusBadRequest, "missing file field")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.Detail(c, http.StatusBadRequest, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Detail(c, http.StatusBadRequest, "cannot open uploaded file")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.Detail(c, http.StatusBadRequest, "cannot read uploaded file")
		return
	}
	if len(raw) > maxUploadBytes {
		response.Detail(c, http.StatusBadRequest, "file too large")
		return
	}

	text, err := extract.Text(raw, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			response.Detail(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Detail(c, http.StatusBadRequest, "text extraction failed")
		return
	}

	doc, err := h.documentService.Insert(c.Request.Context(), c.Param("group_id"), text, fileHeader.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documentService.List(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documentService.Get(c.Request.Context(), c.Param("group_id"), c.Param("document_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}
