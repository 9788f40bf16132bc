package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	ToolRole  Role = "tool"
)

// ChatRequest is the client-facing chat-completions body.
type ChatRequest struct {
	// the model to send request to, e.g. `claude-3-5-sonnet-20241022`
	Model string `json:"model"`

	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	MaxTokens           *int     `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int     `json:"max_completion_tokens,omitempty"`
	Temperature         *float64 `json:"temperature,omitempty"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`

	// Opaque passthrough
	Tools          json.RawMessage `json:"tools,omitempty"`
	ToolChoice     json.RawMessage `json:"tool_choice,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`

	// Extra holds every client field the gateway does not model (top_p, seed, ...)
	// so OpenAI-compatible upstreams still receive them.
	Extra map[string]json.RawMessage `json:"-"`
}

var chatRequestFields = []string{
	"model", "messages", "max_tokens", "max_completion_tokens", "temperature",
	"stream", "tools", "tool_choice", "response_format",
}

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type alias ChatRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, chatRequestFields)
	if err != nil {
		return err
	}
	*r = ChatRequest(a)
	r.Extra = extra
	return nil
}

func (r ChatRequest) MarshalJSON() ([]byte, error) {
	type alias ChatRequest
	return mergeExtra(alias(r), r.Extra)
}

// SystemPrompt returns the text of the first system message.
func (r *ChatRequest) SystemPrompt() (string, bool) {
	for _, m := range r.Messages {
		if m.Role == System {
			return m.Content.String(), true
		}
	}
	return "", false
}

type ChatMessage struct {
	Role       Role            `json:"role" binding:"required,oneof=system user assistant tool"`
	Content    Content         `json:"content"` // string or []ContentPart
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
}

// Content handles the union type: string | []ContentPart
type Content struct {
	Text  string
	Parts []ContentPart
}

func TextContent(s string) Content {
	return Content{Text: s}
}

func (c *Content) UnmarshalJSON(data []byte) error {
	// Try string first
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	// Try array of parts
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &c.Parts)
	}
	// null (assistant tool-call turns)
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// String flattens the content to plain text, joining text parts.
func (c Content) String() string {
	if c.Parts == nil {
		return c.Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if p.Type == "text" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ResponsesRequest is the alternate client-facing shape accepted on /v1/responses.
type ResponsesRequest struct {
	Model string `json:"model"`

	// Input is the latest user turn.
	Input string `json:"input"`

	Metadata        *ResponsesMetadata `json:"metadata,omitempty"`
	MaxOutputTokens *int               `json:"max_output_tokens,omitempty"`
	Stream          *StreamMode        `json:"stream,omitempty"`

	Tools          json.RawMessage `json:"tools,omitempty"`
	ToolChoice     json.RawMessage `json:"tool_choice,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var responsesRequestFields = []string{
	"model", "input", "metadata", "max_output_tokens", "stream",
	"tools", "tool_choice", "response_format",
}

func (r *ResponsesRequest) UnmarshalJSON(data []byte) error {
	type alias ResponsesRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, responsesRequestFields)
	if err != nil {
		return err
	}
	*r = ResponsesRequest(a)
	r.Extra = extra
	return nil
}

func (r ResponsesRequest) MarshalJSON() ([]byte, error) {
	type alias ResponsesRequest
	return mergeExtra(alias(r), r.Extra)
}

// Streaming reports whether the request asks for a text stream.
func (r *ResponsesRequest) Streaming() bool {
	return r.Stream.Enabled()
}

type ResponsesMetadata struct {
	ConversationHistory []ChatMessage `json:"conversationHistory,omitempty" binding:"omitempty,dive"`
	SystemContext       string        `json:"systemContext,omitempty"`
}

// StreamMode is the object form of the stream flag: {"mode":"text"}.
// A bare boolean is accepted as well.
type StreamMode struct {
	Mode string `json:"mode"`
}

func TextStream() *StreamMode {
	return &StreamMode{Mode: "text"}
}

func (s *StreamMode) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		s.Mode = "text"
		return nil
	case "false":
		s.Mode = ""
		return nil
	}
	type alias StreamMode
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("stream must be a boolean or {\"mode\": ...}: %w", err)
	}
	*s = StreamMode(a)
	return nil
}

func (s *StreamMode) Enabled() bool {
	return s != nil && s.Mode != ""
}

// Shape identifies which client-facing contract a body follows.
type Shape int

const (
	ShapeChat Shape = iota
	ShapeResponses
)

func (s Shape) String() string {
	if s == ShapeResponses {
		return "responses"
	}
	return "chat"
}

// ResponsesBody is what /v1/responses accepts: exactly one of Chat or Responses is set.
type ResponsesBody struct {
	Chat      *ChatRequest
	Responses *ResponsesRequest
}

func (b ResponsesBody) Shape() Shape {
	if b.Chat != nil {
		return ShapeChat
	}
	return ShapeResponses
}

func (b ResponsesBody) Model() string {
	if b.Chat != nil {
		return b.Chat.Model
	}
	if b.Responses != nil {
		return b.Responses.Model
	}
	return ""
}

// Target returns the decoded request for struct validation.
func (b ResponsesBody) Target() interface{} {
	if b.Chat != nil {
		return b.Chat
	}
	return b.Responses
}

// DecodeResponsesBody inspects the body and decodes it as Chat-shaped when it
// carries a messages array, otherwise as Responses-shaped.
func DecodeResponsesBody(data []byte) (ResponsesBody, error) {
	var probe struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return ResponsesBody{}, err
	}

	if len(probe.Messages) > 0 && string(probe.Messages) != "null" {
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return ResponsesBody{}, err
		}
		return ResponsesBody{Chat: &req}, nil
	}

	var req ResponsesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ResponsesBody{}, err
	}
	return ResponsesBody{Responses: &req}, nil
}

func collectExtra(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func mergeExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		// modelled fields always win
		if _, ok := out[k]; !ok {
			out[k] = raw
		}
	}
	return json.Marshal(out)
}
