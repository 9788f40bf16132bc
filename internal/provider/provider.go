package provider

import (
	"strings"
)

type Protocol int

const (
	// ProtocolChat is the OpenAI chat-completions wire format.
	ProtocolChat Protocol = iota
	// ProtocolAnthropic is the Anthropic Messages wire format.
	ProtocolAnthropic
)

func (p Protocol) String() string {
	switch p {
	case ProtocolAnthropic:
		return "anthropic"
	default:
		return "chat"
	}
}

// Descriptor is the static description of one upstream provider.
type Descriptor struct {
	Name        string
	DisplayName string

	BaseURL       string
	ChatPath      string
	ResponsesPath string // empty when the provider has no native Responses endpoint
	ModelsPath    string

	AuthHeaderName   string
	AuthHeaderPrefix string
	CredentialEnv    string
	ExtraHeaders     map[string]string

	Protocol                Protocol
	SupportsStreaming       bool
	SupportsNativeResponses bool

	// Model name prefixes that must send max_completion_tokens instead of max_tokens.
	MaxCompletionTokensPrefixes []string

	StaticModelCatalog []string
}

func (d Descriptor) ChatEndpoint() string {
	return join(d.BaseURL, d.ChatPath)
}

func (d Descriptor) ResponsesEndpoint() string {
	if d.ResponsesPath == "" {
		return ""
	}
	return join(d.BaseURL, d.ResponsesPath)
}

func (d Descriptor) ModelsEndpoint() string {
	return join(d.BaseURL, d.ModelsPath)
}

// Headers returns the request headers that authenticate with key.
func (d Descriptor) Headers(key string) map[string]string {
	headers := make(map[string]string, len(d.ExtraHeaders)+1)
	for k, v := range d.ExtraHeaders {
		headers[k] = v
	}
	headers[d.AuthHeaderName] = d.AuthHeaderPrefix + key
	return headers
}

// UsesMaxCompletionTokens reports whether model belongs to a family that rejects max_tokens.
func (d Descriptor) UsesMaxCompletionTokens(model string) bool {
	lowered := strings.ToLower(model)
	for _, prefix := range d.MaxCompletionTokensPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// Catalog returns a copy of the static model list.
func (d Descriptor) Catalog() []string {
	return append([]string(nil), d.StaticModelCatalog...)
}

// WithBaseURL returns a copy pointed at another origin, keeping the endpoint paths.
func (d Descriptor) WithBaseURL(baseURL string) Descriptor {
	c := d.clone()
	if baseURL != "" {
		c.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

func (d Descriptor) clone() Descriptor {
	c := d
	c.MaxCompletionTokensPrefixes = append([]string(nil), d.MaxCompletionTokensPrefixes...)
	c.StaticModelCatalog = append([]string(nil), d.StaticModelCatalog...)
	if d.ExtraHeaders != nil {
		c.ExtraHeaders = make(map[string]string, len(d.ExtraHeaders))
		for k, v := range d.ExtraHeaders {
			c.ExtraHeaders[k] = v
		}
	}
	return c
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// Credentials maps a provider name to its secret.
type Credentials map[string]string

// Lookup returns the configured, non-blank secret for name.
func (c Credentials) Lookup(name string) (string, bool) {
	key := strings.TrimSpace(c[strings.ToLower(name)])
	return key, key != ""
}
