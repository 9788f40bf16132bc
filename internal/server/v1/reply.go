package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/internal/gateway"
	"go.uber.org/zap"
)

const providerHeader = "x-provider"

func providerHint(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(providerHeader))
}

// writeReply sends a unary body as JSON or relays an open stream as SSE.
func (h *Handler) writeReply(c *gin.Context, reply *gateway.Reply) {
	if reply.Stream == nil {
		c.Data(http.StatusOK, "application/json", reply.Body)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// headers are gone; a failing relay can only be logged
	if err := reply.Stream.Relay(c.Request.Context(), c.Writer); err != nil {
		h.logger.Error("Stream relay aborted",
			zap.String("provider", reply.Provider),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
}
