package v1

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/edge-gateway/pkg/api"
)

// CreateCompletion serves POST /v1/chat/completions.
func (h *Handler) CreateCompletion(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(api.InternalError(err))
		return
	}

	var req api.ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = c.Error(api.InternalError(err))
		return
	}

	// model is checked before struct validation so its message stays stable
	if strings.TrimSpace(req.Model) == "" {
		_ = c.Error(api.ModelRequired())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		_ = c.Error(api.ValidationError(h.validator.ParseError(err)))
		return
	}

	reply, err := h.service.Chat(c.Request.Context(), &req, providerHint(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.writeReply(c, reply)
}
