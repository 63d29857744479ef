package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newN8NTestRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewN8NHandler(secret, nil, nil, nil)
	r := gin.New()
	r.POST("/n8n/webhook/search", h.Search)
	return r
}

func TestN8NRejectsMissingSecret(t *testing.T) {
	r := newN8NTestRouter("topsecret")

	req := httptest.NewRequest(http.MethodPost, "/n8n/webhook/search", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestN8NRejectsWrongSecret(t *testing.T) {
	r := newN8NTestRouter("topsecret")

	req := httptest.NewRequest(http.MethodPost, "/n8n/webhook/search", strings.NewReader(`{}`))
	req.Header.Set("X-Webhook-Secret", "guess")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestN8NUnconfiguredSecretDisablesEndpoint(t *testing.T) {
	r := newN8NTestRouter("")

	req := httptest.NewRequest(http.MethodPost, "/n8n/webhook/search", strings.NewReader(`{}`))
	req.Header.Set("X-Webhook-Secret", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestN8NValidSecretBadPayload(t *testing.T) {
	r := newN8NTestRouter("topsecret")

	req := httptest.NewRequest(http.MethodPost, "/n8n/webhook/search", strings.NewReader(`{"query":""}`))
	req.Header.Set("X-Webhook-Secret", "topsecret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
