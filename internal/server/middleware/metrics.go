package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/internal/metrics"
)

// Metrics counts requests by matched route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			route,
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}
