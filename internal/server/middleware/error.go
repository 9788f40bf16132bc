package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/internal/httpclient"
	"github.com/nulzo/edge-gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached by a handler.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		// upstream answered non-2xx: hand its status and body back untouched
		if ue, ok := httpclient.AsUpstream(err); ok {
			contentType := ue.ContentType
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(ue.StatusCode, contentType, ue.Body)
			c.Abort()
			return
		}

		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Log != nil {
				logger.Error("Request failed",
					zap.Int("status", apiErr.Status),
					zap.String("path", c.Request.URL.Path),
					zap.Error(apiErr.Log),
				)
			}
			c.JSON(apiErr.Status, apiErr)
			c.Abort()
			return
		}

		logger.Error("Unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		internal := api.InternalError(err)
		c.JSON(http.StatusInternalServerError, internal)
		c.Abort()
	}
}
