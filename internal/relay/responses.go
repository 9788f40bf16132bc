package relay

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/nulzo/edge-gateway/pkg/api"
)

const (
	EventOutputTextDelta = "response.output_text.delta"
	EventCompleted       = "response.completed"
)

var doneMarker = []byte("[DONE]")

type responsesEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	Response *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"response"`
}

// ResponsesTranscoder turns a native Responses event stream into
// chat-completion chunks. Text deltas become chunks, response.completed ends
// the stream with a stop chunk, and unknown frames pass through unchanged.
// Exactly one DONE frame is produced per stream.
type ResponsesTranscoder struct {
	id      string
	model   string
	created int64
	done    bool
}

func NewResponsesTranscoder(model string) *ResponsesTranscoder {
	return &ResponsesTranscoder{
		model:   model,
		created: time.Now().Unix(),
	}
}

func (t *ResponsesTranscoder) Transcode(f Frame) ([]byte, bool) {
	if t.done {
		return nil, true
	}

	data := bytes.TrimSpace(f.Data)
	if bytes.Equal(data, doneMarker) {
		return t.finish(nil), true
	}

	var ev responsesEvent
	if len(data) == 0 || json.Unmarshal(data, &ev) != nil {
		return passthrough(f), false
	}

	eventType := ev.Type
	if eventType == "" {
		eventType = f.Event
	}
	if ev.Response != nil {
		t.remember(ev.Response.ID, ev.Response.Model)
	}

	switch eventType {
	case EventOutputTextDelta:
		return t.chunk(ev.Delta, nil), false
	case EventCompleted:
		stop := api.FinishStop
		return t.finish(t.chunk("", &stop)), true
	default:
		return passthrough(f), false
	}
}

// Finish emits the terminal sentinel if the stream never produced one.
func (t *ResponsesTranscoder) Finish() []byte {
	if t.done {
		return nil
	}
	return t.finish(nil)
}

func (t *ResponsesTranscoder) remember(id, model string) {
	if t.id == "" && id != "" {
		t.id = id
	}
	if model != "" {
		t.model = model
	}
}

func (t *ResponsesTranscoder) chunk(delta string, finish *string) []byte {
	if t.id == "" {
		t.id = api.NewCompletionID()
	}
	payload, err := json.Marshal(api.NewStreamChunk(t.id, t.model, delta, finish, t.created))
	if err != nil {
		return nil
	}
	return encodeData(payload)
}

func (t *ResponsesTranscoder) finish(prefix []byte) []byte {
	t.done = true
	out := make([]byte, 0, len(prefix)+len(DoneFrame))
	out = append(out, prefix...)
	return append(out, DoneFrame...)
}

func encodeData(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	return append(out, "\n\n"...)
}

func passthrough(f Frame) []byte {
	out := make([]byte, 0, len(f.Raw)+2)
	out = append(out, f.Raw...)
	return append(out, "\n\n"...)
}
