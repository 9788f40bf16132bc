package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/edge-gateway/internal/provider"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrUnknownModel        = errors.New("unknown model")
)

// Resolution reasons that are not rule names.
const (
	ReasonOverride = "override"
	ReasonCatalog  = "catalog"
	ReasonDefault  = "default"
)

// Resolution is the provider chosen for a model and why.
type Resolution struct {
	Provider provider.Descriptor
	// Reason is ReasonOverride, ReasonCatalog, ReasonDefault or the matching rule's name.
	Reason string
}

type Router struct {
	registry *provider.Registry
	rules    []Rule
	strict   bool
}

type Option func(*Router)

// WithStrict makes unrecognized models an error instead of routing them to the primary provider.
func WithStrict(strict bool) Option {
	return func(r *Router) { r.strict = strict }
}

func WithRules(rules []Rule) Option {
	return func(r *Router) { r.rules = rules }
}

func New(registry *provider.Registry, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		rules:    DefaultRules(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve picks the provider for model. A non-empty override always wins and
// is the only way to get ErrUnsupportedProvider.
func (r *Router) Resolve(model, override string) (Resolution, error) {
	// 1. Explicit override
	if name := strings.TrimSpace(override); name != "" {
		d, ok := r.registry.Get(name)
		if !ok {
			return Resolution{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
		}
		return Resolution{Provider: d, Reason: ReasonOverride}, nil
	}

	lowered := strings.ToLower(strings.TrimSpace(model))

	// 2. Ordered classification rules
	for _, rule := range r.rules {
		if !rule.Matches(lowered) {
			continue
		}
		if d, ok := r.registry.Get(rule.Provider); ok {
			return Resolution{Provider: d, Reason: rule.Name}, nil
		}
	}

	// 3. Static catalogs, substring match in either direction
	if lowered != "" {
		for _, d := range r.registry.All() {
			for _, known := range d.StaticModelCatalog {
				k := strings.ToLower(known)
				if strings.Contains(k, lowered) || strings.Contains(lowered, k) {
					return Resolution{Provider: d, Reason: ReasonCatalog}, nil
				}
			}
		}
	}

	// 4. Default fallback
	if r.strict {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return Resolution{Provider: r.registry.Primary(), Reason: ReasonDefault}, nil
}
