package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"multirag/internal/app"
	"multirag/internal/transport/http/response"
)

type SearchHandler struct {
	searchService *app.SearchService
}

type SearchRequest struct {
	Query         string   `json:"query" binding:"required,max=1000"`
	TopK          int      `json:"top_k"`
	IncludeAnswer bool     `json:"include_answer"`
	ContentType   string   `json:"content_type"`
	DocumentIDs   []string `json:"document_ids"`
}

type BatchSearchRequest struct {
	Queries []string `json:"queries" binding:"required"`
	TopK    int      `json:"top_k"`
}

func NewSearchHandler(searchService *app.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (h *SearchHandler) Search(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), app.SearchInput{
		UserID:        userID,
		Query:         req.Query,
		TopK:          req.TopK,
		IncludeAnswer: req.IncludeAnswer,
		ContentType:   req.ContentType,
		DocumentIDs:   req.DocumentIDs,
	})
	if err != nil {
		writeSearchError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *SearchHandler) SearchBatch(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req BatchSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	results, err := h.searchService.SearchBatch(c.Request.Context(), userID, req.Queries, req.TopK)
	if err != nil {
		writeSearchError(c, err)
		return
	}
	response.OK(c, gin.H{"results": results})
}

func writeSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrEmptyQuery),
		errors.Is(err, app.ErrInvalidTopK),
		errors.Is(err, app.ErrInvalidFilter),
		errors.Is(err, app.ErrTooManyQueries),
		errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
	}
}
