package router

import (
	"strings"

	"github.com/nulzo/edge-gateway/internal/provider"
)

type MatchKind int

const (
	// Contains matches when the model name contains any pattern.
	Contains MatchKind = iota
	// Prefix matches when the model name starts with any pattern.
	Prefix
	// Family matches open-weight family names that carry no namespace separator ("org/model").
	Family
)

// Rule is one entry of the ordered classification table.
type Rule struct {
	Name     string
	Kind     MatchKind
	Patterns []string
	Provider string
}

// Matches expects a lower-cased model name.
func (r Rule) Matches(model string) bool {
	if r.Kind == Family && strings.Contains(model, "/") {
		return false
	}
	for _, p := range r.Patterns {
		switch r.Kind {
		case Prefix:
			if strings.HasPrefix(model, p) {
				return true
			}
		case Contains, Family:
			if strings.Contains(model, p) {
				return true
			}
		}
	}
	return false
}

// DefaultRules is evaluated top to bottom; vendor markers come before the
// generic OpenAI and open-weight rules.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "xai-marker", Kind: Contains, Patterns: []string{"grok"}, Provider: provider.XAI},
		{Name: "anthropic-marker", Kind: Prefix, Patterns: []string{"claude"}, Provider: provider.Anthropic},
		{Name: "mistral-marker", Kind: Contains, Patterns: []string{"mistral", "codestral", "pixtral"}, Provider: provider.Mistral},
		{Name: "reasoning-prefix", Kind: Prefix, Patterns: []string{"o1", "o3", "o4"}, Provider: provider.OpenAI},
		{Name: "chat-marker", Kind: Contains, Patterns: []string{"gpt"}, Provider: provider.OpenAI},
		{Name: "open-weight-family", Kind: Family, Patterns: []string{"llama", "gemma", "mixtral", "qwen", "deepseek"}, Provider: provider.Groq},
	}
}
