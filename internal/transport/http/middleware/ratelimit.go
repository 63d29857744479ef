package middleware

import (
	"github.com/gin-gonic/gin"

	"multirag/internal/ratelimit"
	"multirag/internal/transport/http/response"
)

// UserRateLimit enforces the per-user sliding window. Must run after Auth.
func UserRateLimit(limiter *ratelimit.RedisLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDAny, exists := c.Get(ContextUserIDKey)
		if !exists {
			c.Next()
			return
		}
		userID, ok := userIDAny.(uint)
		if !ok {
			c.Next()
			return
		}

		if !limiter.Allow(c.Request.Context(), userID) {
			response.Error(c, 429, response.CodeTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// IPRateLimit throttles unauthenticated endpoints by client address.
func IPRateLimit(limiter *ratelimit.IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.RemoteAddr) {
			response.Error(c, 429, response.CodeTooManyRequests, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
