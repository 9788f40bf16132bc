package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nulzo/edge-gateway/internal/catalog"
	"github.com/nulzo/edge-gateway/internal/httpclient"
	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/internal/router"
	"github.com/nulzo/edge-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var allCreds = provider.Credentials{
	"openai":    "sk-openai",
	"anthropic": "sk-ant",
	"groq":      "sk-groq",
	"mistral":   "sk-mistral",
	"xai":       "sk-xai",
}

// captured is what the fake upstream saw.
type captured struct {
	mu      sync.Mutex
	path    string
	headers http.Header
	body    []byte
}

func (c *captured) json(t *testing.T) map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(c.body, &out))
	return out
}

func newUpstream(t *testing.T, status int, contentType, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		c.body = body
		c.mu.Unlock()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newTestService(t *testing.T, baseURL string, creds provider.Credentials) Service {
	t.Helper()
	urls := map[string]string{}
	for _, d := range provider.Defaults() {
		urls[d.Name] = baseURL
	}
	reg, err := provider.NewRegistry(provider.OpenAI, provider.Configure(provider.Defaults(), urls)...)
	require.NoError(t, err)

	log := zap.NewNop()
	return NewService(log, router.New(reg), catalog.NewAggregator(reg, creds, http.DefaultClient, log), creds, http.DefaultClient)
}

func chatRequest(t *testing.T, raw string) *api.ChatRequest {
	t.Helper()
	var req api.ChatRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return &req
}

func responsesBody(t *testing.T, raw string) api.ResponsesBody {
	t.Helper()
	body, err := api.DecodeResponsesBody([]byte(raw))
	require.NoError(t, err)
	return body
}

func apiError(t *testing.T, err error) *api.Error {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*api.Error)
	require.True(t, ok, "expected *api.Error, got %T", err)
	return apiErr
}

func TestChat_AnthropicTranscoding(t *testing.T) {
	srv, seen := newUpstream(t, http.StatusOK, "application/json", `{
		"id": "msg_1",
		"type": "message",
		"model": "claude-3-5-sonnet-20241022",
		"content": [{"type": "text", "text": "hello"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 9, "output_tokens": 2}
	}`)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Chat(context.Background(), chatRequest(t, `{
		"model": "claude-3-5-sonnet-20241022",
		"messages": [{"role":"system","content":"be terse"},{"role":"user","content":"hi"}],
		"max_tokens": 50
	}`), "")
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", seen.path)
	assert.Equal(t, "sk-ant", seen.headers.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", seen.headers.Get("anthropic-version"))
	assert.JSONEq(t, `{
		"model": "claude-3-5-sonnet-20241022",
		"system": "be terse",
		"messages": [{"role":"user","content":"hi"}],
		"max_tokens": 50
	}`, string(seen.body))

	var completion api.ChatCompletion
	require.NoError(t, json.Unmarshal(reply.Body, &completion))
	assert.Equal(t, provider.Anthropic, reply.Provider)
	assert.Equal(t, "hello", completion.Text())
	assert.Equal(t, api.FinishStop, completion.FinishReason())
	assert.Equal(t, "claude-3-5-sonnet-20241022", completion.Model)
	assert.Equal(t, 11, completion.Usage.TotalTokens)
}

func TestChat_OpenAICompatiblePassthrough(t *testing.T) {
	upstreamBody := `{"id":"chatcmpl-x","object":"chat.completion","created":1,"model":"grok-3","choices":[{"index":0,"message":{"role":"assistant","content":"yo"},"finish_reason":"stop"}],"system_fingerprint":"fp"}`
	srv, seen := newUpstream(t, http.StatusOK, "application/json", upstreamBody)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Chat(context.Background(), chatRequest(t, `{"model":"grok-3","messages":[{"role":"user","content":"hi"}],"top_p":0.5}`), "")
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", seen.path)
	assert.Equal(t, "Bearer sk-xai", seen.headers.Get("Authorization"))
	assert.Equal(t, 0.5, seen.json(t)["top_p"])
	assert.Equal(t, upstreamBody, string(reply.Body))
}

func TestChat_ReasoningTokenQuirk(t *testing.T) {
	srv, seen := newUpstream(t, http.StatusOK, "application/json", `{"choices":[]}`)
	svc := newTestService(t, srv.URL, allCreds)

	_, err := svc.Chat(context.Background(), chatRequest(t, `{"model":"o3-mini","messages":[{"role":"user","content":"x"}],"max_tokens":20}`), "")
	require.NoError(t, err)

	body := seen.json(t)
	assert.NotContains(t, body, "max_tokens")
	assert.Equal(t, float64(20), body["max_completion_tokens"])
}

func TestChat_OverrideWins(t *testing.T) {
	srv, seen := newUpstream(t, http.StatusOK, "application/json", `{"choices":[]}`)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Chat(context.Background(), chatRequest(t, `{"model":"claude-3-opus","messages":[{"role":"user","content":"x"}]}`), "groq")
	require.NoError(t, err)
	assert.Equal(t, provider.Groq, reply.Provider)
	assert.Equal(t, "/openai/v1/chat/completions", seen.path)
}

func TestChat_Errors(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, "application/json", `{}`)

	t.Run("missing model", func(t *testing.T) {
		_, err := newTestService(t, srv.URL, allCreds).Chat(context.Background(), chatRequest(t, `{"messages":[{"role":"user","content":"x"}]}`), "")
		e := apiError(t, err)
		assert.Equal(t, http.StatusBadRequest, e.Status)
		assert.Equal(t, api.MsgModelRequired, e.Message)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := newTestService(t, srv.URL, allCreds).Chat(context.Background(), chatRequest(t, `{"model":"gpt-4o","messages":[]}`), "cohere")
		e := apiError(t, err)
		assert.Equal(t, http.StatusBadRequest, e.Status)
		assert.Equal(t, "Unsupported provider: cohere", e.Message)
	})

	t.Run("missing credential", func(t *testing.T) {
		_, err := newTestService(t, srv.URL, provider.Credentials{}).Chat(context.Background(), chatRequest(t, `{"model":"mistral-large-latest","messages":[]}`), "")
		e := apiError(t, err)
		assert.Equal(t, http.StatusInternalServerError, e.Status)
		assert.Contains(t, e.Message, "Mistral")
		assert.Contains(t, e.Message, "MISTRAL_API_KEY")
	})

	t.Run("unexpected upstream shape", func(t *testing.T) {
		_, err := newTestService(t, srv.URL, allCreds).Chat(context.Background(), chatRequest(t, `{"model":"claude-3-opus","messages":[]}`), "")
		e := apiError(t, err)
		assert.Equal(t, http.StatusInternalServerError, e.Status)
		assert.Equal(t, api.MsgInternal, e.Message)
		assert.NotEmpty(t, e.Details)
	})
}

func TestChat_UpstreamErrorForwarded(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusTooManyRequests, "application/json", `{"error":{"message":"slow down"}}`)
	svc := newTestService(t, srv.URL, allCreds)

	_, err := svc.Chat(context.Background(), chatRequest(t, `{"model":"gpt-4o","messages":[{"role":"user","content":"x"}]}`), "")
	ue, ok := httpclient.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.JSONEq(t, `{"error":{"message":"slow down"}}`, string(ue.Body))
}

func TestChat_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestService(t, url, allCreds).Chat(context.Background(), chatRequest(t, `{"model":"gpt-4o","messages":[{"role":"user","content":"x"}]}`), "")
	e := apiError(t, err)
	assert.Equal(t, http.StatusBadGateway, e.Status)
}

func TestChat_StreamIsRelayedVerbatim(t *testing.T) {
	frames := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\ndata: [DONE]\n\n"
	srv, seen := newUpstream(t, http.StatusOK, "text/event-stream", frames)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Chat(context.Background(), chatRequest(t, `{"model":"llama-3.1-8b-instant","messages":[{"role":"user","content":"x"}],"stream":true}`), "")
	require.NoError(t, err)
	require.NotNil(t, reply.Stream)
	assert.Equal(t, true, seen.json(t)["stream"])
	assert.Equal(t, "text/event-stream", seen.headers.Get("Accept"))

	var out bytes.Buffer
	require.NoError(t, reply.Stream.Relay(context.Background(), &out))
	assert.Equal(t, frames, out.String())
}

func TestResponses_NonNativeProvider(t *testing.T) {
	srv, seen := newUpstream(t, http.StatusOK, "application/json", `{
		"id": "chatcmpl-groq",
		"object": "chat.completion",
		"model": "llama-3.3-70b-versatile",
		"choices": [{"index":0,"message":{"role":"assistant","content":"X is short."},"finish_reason":"stop"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9}
	}`)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Responses(context.Background(),
		responsesBody(t, `{"model":"llama-3.3-70b-versatile","input":"Summarize X","modalities":["text"]}`), "")
	require.NoError(t, err)

	assert.Equal(t, "/openai/v1/chat/completions", seen.path)
	assert.JSONEq(t, `{"model":"llama-3.3-70b-versatile","messages":[{"role":"user","content":"Summarize X"}]}`, string(seen.body))
	assert.JSONEq(t, `{
		"id": "chatcmpl-groq",
		"model": "llama-3.3-70b-versatile",
		"status": "completed",
		"output": "X is short.",
		"usage": {"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9}
	}`, string(reply.Body))
}

func TestResponses_AnthropicWrapped(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, "application/json", `{
		"id": "msg_2", "type": "message", "model": "claude-3-opus",
		"content": [{"type":"text","text":"ok"}], "stop_reason": "max_tokens",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Responses(context.Background(), responsesBody(t, `{"model":"claude-3-opus","input":"hi"}`), "")
	require.NoError(t, err)

	var res api.ResponsesResult
	require.NoError(t, json.Unmarshal(reply.Body, &res))
	assert.Equal(t, api.StatusCompleted, res.Status)
	assert.Equal(t, "ok", res.Output)
	assert.Equal(t, 2, res.Usage.TotalTokens)
}

func TestResponses_NativePassthrough(t *testing.T) {
	upstreamBody := `{"id":"resp_1","object":"response","status":"completed","output":{"text":"hi"}}`
	srv, seen := newUpstream(t, http.StatusOK, "application/json", upstreamBody)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Responses(context.Background(), responsesBody(t, `{"model":"gpt-4o","input":"hello","metadata":{"systemContext":"sys"}}`), "")
	require.NoError(t, err)

	assert.Equal(t, "/v1/responses", seen.path)
	body := seen.json(t)
	assert.Equal(t, "hello", body["input"])
	assert.NotContains(t, body, "stream")
	assert.Equal(t, upstreamBody, string(reply.Body))
}

func TestResponses_ChatShapedBodyToNative(t *testing.T) {
	srv, seen := newUpstream(t, http.StatusOK, "application/json", `{
		"id": "resp_2", "model": "gpt-4o", "status": "completed",
		"output": {"text": "answer"}, "usage": {"input_tokens": 3, "output_tokens": 2}
	}`)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Responses(context.Background(), responsesBody(t, `{
		"model": "gpt-4o",
		"messages": [{"role":"system","content":"sys"},{"role":"user","content":"q"}],
		"max_tokens": 30
	}`), "")
	require.NoError(t, err)

	body := seen.json(t)
	assert.Equal(t, "q", body["input"])
	assert.Equal(t, float64(30), body["max_output_tokens"])
	assert.Equal(t, "sys", body["metadata"].(map[string]interface{})["systemContext"])

	var completion api.ChatCompletion
	require.NoError(t, json.Unmarshal(reply.Body, &completion))
	assert.Equal(t, "answer", completion.Text())
	assert.Equal(t, api.FinishStop, completion.FinishReason())
	assert.Equal(t, 5, completion.Usage.TotalTokens)
}

func TestResponses_NativeStreamTranscoded(t *testing.T) {
	frames := strings.Join([]string{
		`data: {"type":"response.created","response":{"id":"resp_s"}}`,
		`data: {"type":"response.output_text.delta","delta":"Hi"}`,
		`data: {"type":"response.completed","response":{"id":"resp_s"}}`,
	}, "\n\n") + "\n\n"
	srv, seen := newUpstream(t, http.StatusOK, "text/event-stream", frames)
	svc := newTestService(t, srv.URL, allCreds)

	reply, err := svc.Responses(context.Background(), responsesBody(t, `{"model":"gpt-4o","input":"hey","stream":{"mode":"text"}}`), "")
	require.NoError(t, err)
	require.NotNil(t, reply.Stream)
	assert.Equal(t, map[string]interface{}{"mode": "text"}, seen.json(t)["stream"])

	var out bytes.Buffer
	require.NoError(t, reply.Stream.Relay(context.Background(), &out))
	assert.Contains(t, out.String(), `"content":"Hi"`)
	assert.Contains(t, out.String(), `"finish_reason":"stop"`)
	assert.True(t, strings.HasSuffix(out.String(), "data: [DONE]\n\n"))
	assert.Equal(t, 1, strings.Count(out.String(), "[DONE]"))
}

func TestListModels(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", provider.Credentials{})

	list, err := svc.ListModels(context.Background(), api.ModelQuery{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "list", list.Object)
	assert.Equal(t, "claude-3-5-sonnet-20241022", list.Data[0].ID)

	all, err := svc.ListModels(context.Background(), api.ModelQuery{Provider: "ALL"})
	require.NoError(t, err)
	total := 0
	for _, d := range provider.Defaults() {
		total += len(d.StaticModelCatalog)
	}
	assert.Len(t, all.Data, total)

	agg, err := svc.ListModels(context.Background(), api.ModelQuery{Aggregate: true})
	require.NoError(t, err)
	assert.Len(t, agg.Data, total)

	_, err = svc.ListModels(context.Background(), api.ModelQuery{Provider: "cohere"})
	assert.Equal(t, http.StatusBadRequest, apiError(t, err).Status)
}

func TestReportProviders(t *testing.T) {
	reg, err := provider.NewRegistry("", provider.Defaults()...)
	require.NoError(t, err)

	assert.Equal(t, 2, ReportProviders(reg, provider.Credentials{"openai": "a", "xai": "b", "groq": " "}, zap.NewNop()))
	assert.Equal(t, 0, ReportProviders(reg, nil, zap.NewNop()))
}
