package provider

const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Groq      = "groq"
	Mistral   = "mistral"
	XAI       = "xai"
)

// Defaults returns the built-in provider table. OpenAI comes first and is the
// usual primary.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			Name:                    OpenAI,
			DisplayName:             "OpenAI",
			BaseURL:                 "https://api.openai.com",
			ChatPath:                "/v1/chat/completions",
			ResponsesPath:           "/v1/responses",
			ModelsPath:              "/v1/models",
			AuthHeaderName:          "Authorization",
			AuthHeaderPrefix:        "Bearer ",
			CredentialEnv:           "OPENAI_API_KEY",
			Protocol:                ProtocolChat,
			SupportsStreaming:       true,
			SupportsNativeResponses: true,
			MaxCompletionTokensPrefixes: []string{
				"o1", "o3", "o4", "gpt-5",
			},
			StaticModelCatalog: []string{
				"gpt-4o",
				"gpt-4o-mini",
				"gpt-4.1",
				"gpt-4.1-mini",
				"o1",
				"o3-mini",
				"o4-mini",
			},
		},
		{
			Name:             Anthropic,
			DisplayName:      "Anthropic",
			BaseURL:          "https://api.anthropic.com",
			ChatPath:         "/v1/messages",
			ModelsPath:       "/v1/models",
			AuthHeaderName:   "x-api-key",
			AuthHeaderPrefix: "",
			CredentialEnv:    "ANTHROPIC_API_KEY",
			ExtraHeaders: map[string]string{
				"anthropic-version": "2023-06-01",
			},
			Protocol:          ProtocolAnthropic,
			SupportsStreaming: true,
			StaticModelCatalog: []string{
				"claude-3-5-sonnet-20241022",
				"claude-3-5-haiku-20241022",
				"claude-3-opus-20240229",
				"claude-sonnet-4-20250514",
			},
		},
		{
			Name:              Groq,
			DisplayName:       "Groq",
			BaseURL:           "https://api.groq.com",
			ChatPath:          "/openai/v1/chat/completions",
			ModelsPath:        "/openai/v1/models",
			AuthHeaderName:    "Authorization",
			AuthHeaderPrefix:  "Bearer ",
			CredentialEnv:     "GROQ_API_KEY",
			Protocol:          ProtocolChat,
			SupportsStreaming: true,
			StaticModelCatalog: []string{
				"llama-3.3-70b-versatile",
				"llama-3.1-8b-instant",
				"gemma2-9b-it",
				"mixtral-8x7b-32768",
				"deepseek-r1-distill-llama-70b",
				"qwen-qwq-32b",
			},
		},
		{
			Name:              Mistral,
			DisplayName:       "Mistral",
			BaseURL:           "https://api.mistral.ai",
			ChatPath:          "/v1/chat/completions",
			ModelsPath:        "/v1/models",
			AuthHeaderName:    "Authorization",
			AuthHeaderPrefix:  "Bearer ",
			CredentialEnv:     "MISTRAL_API_KEY",
			Protocol:          ProtocolChat,
			SupportsStreaming: true,
			StaticModelCatalog: []string{
				"mistral-large-latest",
				"mistral-small-latest",
				"codestral-latest",
				"open-mistral-nemo",
			},
		},
		{
			Name:              XAI,
			DisplayName:       "xAI",
			BaseURL:           "https://api.x.ai",
			ChatPath:          "/v1/chat/completions",
			ModelsPath:        "/v1/models",
			AuthHeaderName:    "Authorization",
			AuthHeaderPrefix:  "Bearer ",
			CredentialEnv:     "XAI_API_KEY",
			Protocol:          ProtocolChat,
			SupportsStreaming: true,
			StaticModelCatalog: []string{
				"grok-3",
				"grok-3-mini",
				"grok-2-latest",
				"grok-beta",
			},
		},
	}
}

// Configure applies per-provider base URL overrides to descriptors.
func Configure(descriptors []Descriptor, baseURLs map[string]string) []Descriptor {
	out := make([]Descriptor, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.WithBaseURL(baseURLs[d.Name])
	}
	return out
}
