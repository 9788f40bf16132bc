package api

import (
	"time"

	"github.com/google/uuid"
)

const (
	FinishStop   = "stop"
	FinishLength = "length"

	ObjectCompletion = "chat.completion"
	ObjectChunk      = "chat.completion.chunk"

	StatusCompleted = "completed"
)

// ChatCompletion is the non-streaming chat-shaped result.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func NewUsage(prompt, completion int) *Usage {
	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// Text returns the first choice's message content.
func (c *ChatCompletion) Text() string {
	if len(c.Choices) == 0 || c.Choices[0].Message == nil {
		return ""
	}
	return c.Choices[0].Message.Content.String()
}

// FinishReason returns the first choice's finish reason.
func (c *ChatCompletion) FinishReason() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].FinishReason
}

// NewCompletion builds a single-choice assistant completion.
func NewCompletion(id, model, text, finishReason string, usage *Usage) *ChatCompletion {
	if id == "" {
		id = NewCompletionID()
	}
	return &ChatCompletion{
		ID:      id,
		Object:  ObjectCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index: 0,
			Message: &ChatMessage{
				Role:    Assistant,
				Content: TextContent(text),
			},
			FinishReason: finishReason,
		}},
		Usage: usage,
	}
}

func NewCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// ResponsesResult is the Responses-shaped envelope returned when a client sent
// a Responses-shaped body to a provider that answered in chat shape.
type ResponsesResult struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Status string `json:"status"`
	Output string `json:"output"`
	Usage  *Usage `json:"usage,omitempty"`
}

// StreamChunk is one client-facing SSE frame payload.
type StreamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type ChunkDelta struct {
	Content string `json:"content,omitempty"`
}

func NewStreamChunk(id, model, delta string, finishReason *string, created int64) StreamChunk {
	return StreamChunk{
		ID:      id,
		Object:  ObjectChunk,
		Created: created,
		Model:   model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        ChunkDelta{Content: delta},
			FinishReason: finishReason,
		}},
	}
}
