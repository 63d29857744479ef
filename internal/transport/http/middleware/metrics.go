package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"multirag/internal/metrics"
)

// Metrics records request counts and latency per route template. Requests
// that match no route are labelled "unmatched" to keep cardinality bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		method := c.Request.Method
		code := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(method, handler, code).Inc()
		m.HTTPDurationSeconds.WithLabelValues(method, handler).Observe(time.Since(start).Seconds())
	}
}
