package handler

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"multirag/internal/app"
)

// N8NHandler serves the workflow-automation webhook endpoints. Callers
// authenticate with a shared secret header plus a per-user api key in the
// payload. Responses use the flat envelope n8n workflow nodes expect rather
// than the API's code/message/data shape.
type N8NHandler struct {
	secret        string
	authService   *app.AuthService
	searchService *app.SearchService
	docService    *app.DocumentService
}

type N8NSearchRequest struct {
	APIKey        string `json:"api_key" binding:"required"`
	Query         string `json:"query" binding:"required,max=1000"`
	TopK          int    `json:"top_k"`
	IncludeAnswer bool   `json:"include_answer"`
}

type N8NUploadRequest struct {
	APIKey        string `json:"api_key" binding:"required"`
	Filename      string `json:"filename" binding:"required,max=256"`
	ContentBase64 string `json:"content_base64" binding:"required"`
}

type n8nResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

func n8nOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, n8nResponse{
		Success:   true,
		Data:      data,
		Message:   "ok",
		Timestamp: time.Now().UTC(),
	})
}

func n8nError(c *gin.Context, status int, message string) {
	c.JSON(status, n8nResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func NewN8NHandler(
	secret string,
	authService *app.AuthService,
	searchService *app.SearchService,
	docService *app.DocumentService,
) *N8NHandler {
	return &N8NHandler{
		secret:        secret,
		authService:   authService,
		searchService: searchService,
		docService:    docService,
	}
}

func (h *N8NHandler) authorize(c *gin.Context) bool {
	if h.secret == "" {
		n8nError(c, http.StatusServiceUnavailable, "webhook endpoints are not configured")
		return false
	}
	provided := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		n8nError(c, http.StatusUnauthorized, "invalid webhook secret")
		return false
	}
	return true
}

func (h *N8NHandler) Search(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	var req N8NSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		n8nError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := h.authService.ValidateAPIKey(req.APIKey)
	if err != nil {
		n8nError(c, http.StatusUnauthorized, "invalid api key")
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), app.SearchInput{
		UserID:        user.ID,
		Query:         req.Query,
		TopK:          req.TopK,
		IncludeAnswer: req.IncludeAnswer,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyQuery),
			errors.Is(err, app.ErrInvalidTopK),
			errors.Is(err, app.ErrInvalidFilter):
			n8nError(c, http.StatusBadRequest, err.Error())
		default:
			n8nError(c, http.StatusInternalServerError, "search failed")
		}
		return
	}
	n8nOK(c, http.StatusOK, result)
}

func (h *N8NHandler) Upload(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	var req N8NUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		n8nError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := h.authService.ValidateAPIKey(req.APIKey)
	if err != nil {
		n8nError(c, http.StatusUnauthorized, "invalid api key")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		n8nError(c, http.StatusBadRequest, "content_base64 is not valid base64")
		return
	}

	result, err := h.docService.UploadBytes(c.Request.Context(), user.ID, req.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnsupportedFileType),
			errors.Is(err, app.ErrFileTooLarge),
			errors.Is(err, app.ErrNoFiles),
			errors.Is(err, app.ErrInvalidInput):
			n8nError(c, http.StatusBadRequest, err.Error())
		default:
			n8nError(c, http.StatusInternalServerError, "upload failed")
		}
		return
	}
	n8nOK(c, http.StatusAccepted, result)
}
