package transcode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nulzo/edge-gateway/pkg/api"
)

// ResponsesResponse is the native Responses API result.
type ResponsesResponse struct {
	ID     string          `json:"id"`
	Object string          `json:"object,omitempty"`
	Model  string          `json:"model"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Usage  *NativeUsage    `json:"usage,omitempty"`
}

// NativeUsage accepts both the chat and the Responses token counter names.
type NativeUsage struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	InputTokens      *int `json:"input_tokens,omitempty"`
	OutputTokens     *int `json:"output_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
}

func (u *NativeUsage) normalize() *api.Usage {
	if u == nil {
		return api.NewUsage(0, 0)
	}
	prompt := firstOf(u.PromptTokens, u.InputTokens)
	completion := firstOf(u.CompletionTokens, u.OutputTokens)
	usage := api.NewUsage(prompt, completion)
	if u.TotalTokens != nil {
		usage.TotalTokens = *u.TotalTokens
	}
	return usage
}

func firstOf(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

// ChatToResponses builds a Responses body from a chat body. The last user
// message becomes input and every non-system message is kept as history.
func ChatToResponses(req *api.ChatRequest) *api.ResponsesRequest {
	out := &api.ResponsesRequest{
		Model:          req.Model,
		Tools:          req.Tools,
		ToolChoice:     req.ToolChoice,
		ResponseFormat: req.ResponseFormat,
	}

	meta := &api.ResponsesMetadata{}
	systemSeen := false
	for _, msg := range req.Messages {
		if msg.Role == api.System {
			if !systemSeen {
				meta.SystemContext = msg.Content.String()
				systemSeen = true
			}
			continue
		}
		meta.ConversationHistory = append(meta.ConversationHistory, msg)
		if msg.Role == api.User {
			out.Input = msg.Content.String()
		}
	}
	if meta.SystemContext != "" || len(meta.ConversationHistory) > 0 {
		out.Metadata = meta
	}

	if req.Stream {
		out.Stream = api.TextStream()
	}

	switch {
	case req.MaxTokens != nil:
		out.MaxOutputTokens = req.MaxTokens
	case req.MaxCompletionTokens != nil:
		out.MaxOutputTokens = req.MaxCompletionTokens
	}

	if len(req.Extra) > 0 || req.Temperature != nil {
		out.Extra = make(map[string]json.RawMessage, len(req.Extra)+1)
		for k, v := range req.Extra {
			out.Extra[k] = v
		}
		if req.Temperature != nil {
			if raw, err := json.Marshal(*req.Temperature); err == nil {
				out.Extra["temperature"] = raw
			}
		}
	}

	return out
}

// ResponsesToChat rebuilds chat messages from systemContext and
// conversationHistory, appending input as the final user turn unless the
// history already ends with it. Fields the chat shape does not model are dropped.
func ResponsesToChat(req *api.ResponsesRequest) *api.ChatRequest {
	out := &api.ChatRequest{
		Model:          req.Model,
		MaxTokens:      req.MaxOutputTokens,
		Stream:         req.Streaming(),
		Tools:          req.Tools,
		ToolChoice:     req.ToolChoice,
		ResponseFormat: req.ResponseFormat,
	}

	var history []api.ChatMessage
	if req.Metadata != nil {
		if req.Metadata.SystemContext != "" {
			out.Messages = append(out.Messages, api.ChatMessage{
				Role:    api.System,
				Content: api.TextContent(req.Metadata.SystemContext),
			})
		}
		history = req.Metadata.ConversationHistory
	}

	out.Messages = append(out.Messages, history...)

	if req.Input != "" && !endsWithUserTurn(history, req.Input) {
		out.Messages = append(out.Messages, api.ChatMessage{
			Role:    api.User,
			Content: api.TextContent(req.Input),
		})
	}

	return out
}

func endsWithUserTurn(history []api.ChatMessage, input string) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	return last.Role == api.User && last.Content.String() == input
}

// ResponsesToCompletion converts a native Responses result into a chat completion.
func ResponsesToCompletion(resp *ResponsesResponse, fallbackModel string) *api.ChatCompletion {
	finish := api.FinishLength
	if resp.Status == api.StatusCompleted {
		finish = api.FinishStop
	}

	model := resp.Model
	if model == "" {
		model = fallbackModel
	}

	return api.NewCompletion(resp.ID, model, OutputText(resp.Output), finish, resp.Usage.normalize())
}

// DecodeResponses parses a native Responses body into a chat completion.
func DecodeResponses(data []byte, fallbackModel string) (*api.ChatCompletion, error) {
	var resp ResponsesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode responses result: %w", err)
	}
	if resp.Status == "" && len(resp.Output) == 0 {
		return nil, fmt.Errorf("%w: responses result has neither status nor output", ErrUnexpectedShape)
	}
	return ResponsesToCompletion(&resp, fallbackModel), nil
}

// OutputText extracts message text from a Responses output field. An object
// contributes its text, a string is used as-is, an item array contributes its
// output_text parts, and anything else is returned as raw JSON.
func OutputText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(trimmed, &obj); err == nil && obj.Text != nil {
			return *obj.Text
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '[':
		var items []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(trimmed, &items); err == nil {
			var sb strings.Builder
			found := false
			for _, item := range items {
				for _, part := range item.Content {
					if part.Type == "output_text" || part.Type == "text" {
						sb.WriteString(part.Text)
						found = true
					}
				}
			}
			if found {
				return sb.String()
			}
		}
	}

	return string(trimmed)
}

// CompletionToResponses wraps a chat completion in the Responses envelope.
func CompletionToResponses(c *api.ChatCompletion) api.ResponsesResult {
	usage := c.Usage
	if usage == nil {
		usage = api.NewUsage(0, 0)
	}
	return api.ResponsesResult{
		ID:     c.ID,
		Model:  c.Model,
		Status: api.StatusCompleted,
		Output: c.Text(),
		Usage:  usage,
	}
}
