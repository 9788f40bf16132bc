package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/nulzo/edge-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Unix(1700000000, 0)

func newAggregator(t *testing.T, baseURLs map[string]string, creds provider.Credentials) *Aggregator {
	t.Helper()
	reg, err := provider.NewRegistry(provider.OpenAI, provider.Configure(provider.Defaults(), baseURLs)...)
	require.NoError(t, err)

	a := NewAggregator(reg, creds, http.DefaultClient, zap.NewNop())
	a.now = func() time.Time { return fixedNow }
	return a
}

func ids(models []api.Model) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.ID
	}
	return out
}

func TestList_NoCredentialServesStatic(t *testing.T) {
	a := newAggregator(t, nil, provider.Credentials{})

	models, err := a.List(context.Background(), provider.Groq)
	require.NoError(t, err)

	reg, _ := provider.NewRegistry("", provider.Defaults()...)
	groq, _ := reg.Get(provider.Groq)
	assert.Equal(t, groq.StaticModelCatalog, ids(models))
	for _, m := range models {
		assert.Equal(t, "model", m.Object)
		assert.Equal(t, provider.Groq, m.OwnedBy)
		assert.Equal(t, fixedNow.Unix(), m.Created)
	}
}

func TestList_DefaultsToPrimary(t *testing.T) {
	a := newAggregator(t, nil, provider.Credentials{})

	models, err := a.List(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, ids(models), "gpt-4o")
}

func TestList_UnknownProvider(t *testing.T) {
	a := newAggregator(t, nil, provider.Credentials{})

	_, err := a.List(context.Background(), "cohere")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestList_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"type":"model","id":"claude-opus-4","display_name":"Claude Opus 4","created_at":"2025-05-22T00:00:00Z"},
			{"type":"model","id":""}
		]}`))
	}))
	defer srv.Close()

	a := newAggregator(t, map[string]string{provider.Anthropic: srv.URL}, provider.Credentials{"anthropic": "sk-ant"})

	models, err := a.List(context.Background(), provider.Anthropic)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, api.Model{
		ID:      "claude-opus-4",
		Object:  "model",
		Created: time.Date(2025, 5, 22, 0, 0, 0, 0, time.UTC).Unix(),
		OwnedBy: provider.Anthropic,
	}, models[0])
}

func TestList_LiveKeepsUpstreamOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-groq", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llama-3.3-70b-versatile","object":"model","created":1733447754,"owned_by":"Meta"}]}`))
	}))
	defer srv.Close()

	a := newAggregator(t, map[string]string{provider.Groq: srv.URL}, provider.Credentials{"groq": "sk-groq"})

	models := a.Models(context.Background(), mustGet(t, a, provider.Groq))
	require.Len(t, models, 1)
	assert.Equal(t, "Meta", models[0].OwnedBy)
	assert.Equal(t, int64(1733447754), models[0].Created)
}

func TestList_LiveFailureFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad key"}`))
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{"empty", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := newAggregator(t, map[string]string{provider.Mistral: srv.URL}, provider.Credentials{"mistral": "sk-m"})
			models, err := a.List(context.Background(), provider.Mistral)
			require.NoError(t, err)
			assert.Equal(t, mustGet(t, a, provider.Mistral).StaticModelCatalog, ids(models))
		})
	}
}

func TestList_NetworkFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := newAggregator(t, map[string]string{provider.XAI: url}, provider.Credentials{"xai": "sk-x"})
	models, err := a.List(context.Background(), provider.XAI)
	require.NoError(t, err)
	assert.Contains(t, ids(models), "grok-3")
}

func TestListAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-live","created":1}]}`))
	}))
	defer srv.Close()

	a := newAggregator(t, map[string]string{provider.OpenAI: srv.URL}, provider.Credentials{"openai": "sk-1"})

	models := a.ListAll(context.Background())

	var expected []string
	expected = append(expected, "gpt-live")
	for _, d := range provider.Defaults()[1:] {
		expected = append(expected, d.StaticModelCatalog...)
	}
	assert.Equal(t, expected, ids(models))
	assert.Equal(t, provider.OpenAI, models[0].OwnedBy)
}

func mustGet(t *testing.T, a *Aggregator, name string) provider.Descriptor {
	t.Helper()
	d, ok := a.registry.Get(name)
	require.True(t, ok)
	return d
}
