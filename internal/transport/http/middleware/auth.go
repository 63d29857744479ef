package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"multirag/internal/app"
	"multirag/internal/pkg/jwtutil"
	"multirag/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextIsAdminKey  = "is_admin"
)

// Auth accepts either a Bearer JWT or an X-API-Key header. Both resolve to a
// user id in the gin context.
func Auth(secret string, authService *app.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := strings.TrimSpace(c.GetHeader("X-API-Key")); apiKey != "" {
			user, err := authService.ValidateAPIKey(apiKey)
			if err != nil {
				response.Error(c, 401, response.CodeUnauthorized, "invalid api key")
				c.Abort()
				return
			}
			c.Set(ContextUserIDKey, user.ID)
			c.Set(ContextUsernameKey, user.Username)
			c.Set(ContextIsAdminKey, user.IsAdmin)
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing credentials")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextIsAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, _ := c.Get(ContextIsAdminKey)
		if admin, ok := isAdmin.(bool); !ok || !admin {
			response.Error(c, 403, response.CodeForbidden, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
