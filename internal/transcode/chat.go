// Package transcode converts between the client-facing Chat and Responses
// shapes and each upstream's native request and response bodies.
package transcode

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/pkg/api"
)

var ErrUnexpectedShape = errors.New("unexpected upstream response shape")

// PrepareChat returns the body for an OpenAI-compatible chat endpoint. The
// input is not modified.
func PrepareChat(req *api.ChatRequest, d provider.Descriptor) *api.ChatRequest {
	out := *req
	if req.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(req.Extra))
		for k, v := range req.Extra {
			out.Extra[k] = v
		}
	}

	// reasoning-tier models reject the legacy field name
	if out.MaxTokens != nil && d.UsesMaxCompletionTokens(out.Model) {
		if out.MaxCompletionTokens == nil {
			out.MaxCompletionTokens = out.MaxTokens
		}
		out.MaxTokens = nil
	}

	return &out
}

// DecodeChat parses a chat-completions body.
func DecodeChat(data []byte) (*api.ChatCompletion, error) {
	var c api.ChatCompletion
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if c.Choices == nil {
		return nil, fmt.Errorf("%w: chat completion has no choices", ErrUnexpectedShape)
	}
	return &c, nil
}
