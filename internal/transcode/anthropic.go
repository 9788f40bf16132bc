package transcode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nulzo/edge-gateway/pkg/api"
)

// DefaultAnthropicMaxTokens fills the field the Messages API requires when the client omits it.
const DefaultAnthropicMaxTokens = 1024

const stopReasonEndTurn = "end_turn"

// Anthropic specific structures
type AnthropicMessage struct {
	Role    api.Role    `json:"role"`
	Content api.Content `json:"content"`
}

type AnthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []AnthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       json.RawMessage    `json:"tools,omitempty"`
	ToolChoice  json.RawMessage    `json:"tool_choice,omitempty"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type AnthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      AnthropicUsage          `json:"usage"`
}

// ChatToAnthropic hoists the first system message into the top-level system
// field. Later system messages are dropped since the Messages API has no
// system role.
func ChatToAnthropic(req *api.ChatRequest) AnthropicRequest {
	out := AnthropicRequest{
		Model:       req.Model,
		Messages:    make([]AnthropicMessage, 0, len(req.Messages)),
		MaxTokens:   DefaultAnthropicMaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}

	switch {
	case req.MaxTokens != nil:
		out.MaxTokens = *req.MaxTokens
	case req.MaxCompletionTokens != nil:
		out.MaxTokens = *req.MaxCompletionTokens
	}

	hoisted := false
	for _, msg := range req.Messages {
		if msg.Role == api.System {
			if !hoisted {
				out.System = msg.Content.String()
				hoisted = true
			}
			continue
		}
		out.Messages = append(out.Messages, AnthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return out
}

// FinishReasonFromStop maps an Anthropic stop_reason onto the chat vocabulary.
func FinishReasonFromStop(stopReason string) string {
	if stopReason == stopReasonEndTurn {
		return api.FinishStop
	}
	return api.FinishLength
}

// AnthropicToChat converts a Messages API response. fallbackModel is used
// when the upstream omits the model name.
func AnthropicToChat(resp *AnthropicResponse, fallbackModel string) *api.ChatCompletion {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	model := resp.Model
	if model == "" {
		model = fallbackModel
	}

	return api.NewCompletion(
		resp.ID,
		model,
		sb.String(),
		FinishReasonFromStop(resp.StopReason),
		api.NewUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	)
}

// DecodeAnthropic parses a Messages API body into a chat completion.
func DecodeAnthropic(data []byte, fallbackModel string) (*api.ChatCompletion, error) {
	var resp AnthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if resp.Type != "" && resp.Type != "message" {
		return nil, fmt.Errorf("%w: anthropic type %q", ErrUnexpectedShape, resp.Type)
	}
	if resp.Content == nil {
		return nil, fmt.Errorf("%w: anthropic response has no content", ErrUnexpectedShape)
	}
	return AnthropicToChat(&resp, fallbackModel), nil
}
