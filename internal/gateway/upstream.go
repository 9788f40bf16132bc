package gateway

import (
	"encoding/json"

	"github.com/nulzo/edge-gateway/internal/metrics"
	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/internal/relay"
	"github.com/nulzo/edge-gateway/internal/transcode"
	"github.com/nulzo/edge-gateway/pkg/api"
)

// Native is the wire protocol a request is forwarded in.
type Native int

const (
	// NativeChat is an OpenAI-compatible chat-completions call.
	NativeChat Native = iota
	// NativeAnthropic is an Anthropic Messages call.
	NativeAnthropic
	// NativeResponses is a call to a native Responses endpoint.
	NativeResponses
)

func (n Native) String() string {
	switch n {
	case NativeAnthropic:
		return metrics.KindMessages
	case NativeResponses:
		return metrics.KindResponses
	default:
		return metrics.KindChat
	}
}

// Shape is the client-facing shape this protocol answers in natively, so its
// body can be forwarded untouched.
func (n Native) Shape() (api.Shape, bool) {
	switch n {
	case NativeChat:
		return api.ShapeChat, true
	case NativeResponses:
		return api.ShapeResponses, true
	default:
		return 0, false
	}
}

// Upstream is one fully prepared provider call.
type Upstream struct {
	Kind     Native
	Provider provider.Descriptor
	Endpoint string
	Model    string
	Body     interface{}
	Stream   bool
	// Reply is the shape the client expects back.
	Reply api.Shape
}

// planChat prepares an upstream call for a chat-shaped body.
func planChat(d provider.Descriptor, req *api.ChatRequest, reply api.Shape) Upstream {
	stream := req.Stream && d.SupportsStreaming

	if d.Protocol == provider.ProtocolAnthropic {
		body := transcode.ChatToAnthropic(req)
		body.Stream = stream
		return Upstream{
			Kind:     NativeAnthropic,
			Provider: d,
			Endpoint: d.ChatEndpoint(),
			Model:    req.Model,
			Body:     body,
			Stream:   stream,
			Reply:    reply,
		}
	}

	body := transcode.PrepareChat(req, d)
	body.Stream = stream
	return Upstream{
		Kind:     NativeChat,
		Provider: d,
		Endpoint: d.ChatEndpoint(),
		Model:    req.Model,
		Body:     body,
		Stream:   stream,
		Reply:    reply,
	}
}

// planResponses prepares an upstream call for the /v1/responses route. The
// native Responses endpoint is used when the provider has one; otherwise the
// body is converted to chat.
func planResponses(d provider.Descriptor, body api.ResponsesBody) Upstream {
	reply := body.Shape()

	if d.SupportsNativeResponses && d.ResponsesEndpoint() != "" {
		var req *api.ResponsesRequest
		if body.Chat != nil {
			req = transcode.ChatToResponses(body.Chat)
		} else {
			cp := *body.Responses
			req = &cp
		}
		stream := req.Streaming() && d.SupportsStreaming
		if !stream {
			req.Stream = nil
		}
		return Upstream{
			Kind:     NativeResponses,
			Provider: d,
			Endpoint: d.ResponsesEndpoint(),
			Model:    req.Model,
			Body:     req,
			Stream:   stream,
			Reply:    reply,
		}
	}

	chat := body.Chat
	if chat == nil {
		chat = transcode.ResponsesToChat(body.Responses)
	}
	return planChat(d, chat, reply)
}

// Passthrough reports whether the upstream body already has the client's shape.
func (u Upstream) Passthrough() bool {
	shape, ok := u.Kind.Shape()
	return ok && shape == u.Reply
}

// Decode converts a non-streaming upstream body into a chat completion.
func (u Upstream) Decode(data []byte) (*api.ChatCompletion, error) {
	switch u.Kind {
	case NativeAnthropic:
		return transcode.DecodeAnthropic(data, u.Model)
	case NativeResponses:
		return transcode.DecodeResponses(data, u.Model)
	default:
		return transcode.DecodeChat(data)
	}
}

// Render produces the client-facing JSON for a non-streaming upstream body.
func (u Upstream) Render(data []byte) ([]byte, error) {
	if u.Passthrough() {
		return data, nil
	}

	completion, err := u.Decode(data)
	if err != nil {
		return nil, err
	}

	if u.Reply == api.ShapeResponses {
		return json.Marshal(transcode.CompletionToResponses(completion))
	}
	return json.Marshal(completion)
}

// Transcoder returns the stream rewriter for this call, or nil for verbatim relay.
func (u Upstream) Transcoder() relay.Transcoder {
	if u.Kind == NativeResponses {
		return relay.NewResponsesTranscoder(u.Model)
	}
	return nil
}
