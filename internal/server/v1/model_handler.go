package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/pkg/api"
)

// ListModels serves GET /v1/models.
func (h *Handler) ListModels(c *gin.Context) {
	q := api.ModelQuery{
		Provider:  modelProvider(c),
		Aggregate: truthy(c.Query("aggregate")),
	}

	list, err := h.service.ListModels(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// modelProvider reads the selector from the header first, then the query.
func modelProvider(c *gin.Context) string {
	if p := providerHint(c); p != "" {
		return p
	}
	if p := c.Query(providerHeader); p != "" {
		return strings.TrimSpace(p)
	}
	return strings.TrimSpace(c.Query("provider"))
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
