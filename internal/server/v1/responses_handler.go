package v1

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/pkg/api"
)

// CreateResponse serves POST /v1/responses. The body may be Chat-shaped or
// Responses-shaped; the reply uses the same shape.
func (h *Handler) CreateResponse(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(api.InternalError(err))
		return
	}

	body, err := api.DecodeResponsesBody(raw)
	if err != nil {
		_ = c.Error(api.InternalError(err))
		return
	}

	if strings.TrimSpace(body.Model()) == "" {
		_ = c.Error(api.ModelRequired())
		return
	}
	if err := h.validator.Struct(body.Target()); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	reply, err := h.service.Responses(c.Request.Context(), body, providerHint(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.writeReply(c, reply)
}
