package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"multirag/internal/pkg/jwtutil"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestAuthRejectsMissingCredentials(t *testing.T) {
	r := newEngine()
	r.GET("/p", Auth("secret", nil), func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongScheme(t *testing.T) {
	r := newEngine()
	r.GET("/p", Auth("secret", nil), func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsValidJWT(t *testing.T) {
	token, err := jwtutil.GenerateToken("secret", time.Hour, 7, "carol", false)
	assert.NoError(t, err)

	r := newEngine()
	r.GET("/p", Auth("secret", nil), func(c *gin.Context) {
		userID, _ := c.Get(ContextUserIDKey)
		assert.Equal(t, uint(7), userID)
		c.Status(200)
	})

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsTamperedJWT(t *testing.T) {
	token, err := jwtutil.GenerateToken("other-secret", time.Hour, 7, "carol", false)
	assert.NoError(t, err)

	r := newEngine()
	r.GET("/p", Auth("secret", nil), func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminBlocksNonAdmin(t *testing.T) {
	r := newEngine()
	r.GET("/a", func(c *gin.Context) { c.Set(ContextIsAdminKey, false) }, RequireAdmin(), func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	r := newEngine()
	r.GET("/a", func(c *gin.Context) { c.Set(ContextIsAdminKey, true) }, RequireAdmin(), func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
