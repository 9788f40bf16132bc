package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health is used by load balancers to check the process is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
