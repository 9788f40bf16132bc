package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider")
	ErrEmptyRegistry     = errors.New("registry needs at least one provider")
)

// Registry is the read-only provider table built once at process start.
// It is safe for concurrent use because nothing mutates it after NewRegistry.
type Registry struct {
	descriptors []Descriptor
	index       map[string]int
	primary     int
}

// NewRegistry builds a registry; primary names the default provider.
func NewRegistry(primary string, descriptors ...Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		key := strings.ToLower(d.Name)
		if key == "" {
			return nil, fmt.Errorf("provider descriptor without a name")
		}
		if _, exists := r.index[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, d.Name)
		}
		r.index[key] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d.clone())
	}

	if primary == "" {
		primary = r.descriptors[0].Name
	}
	idx, ok := r.index[strings.ToLower(primary)]
	if !ok {
		return nil, fmt.Errorf("primary provider %q is not registered", primary)
	}
	r.primary = idx

	return r, nil
}

// Get looks a provider up by name, ignoring case.
func (r *Registry) Get(name string) (Descriptor, bool) {
	idx, ok := r.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx].clone(), true
}

// Primary is the provider used when nothing else decides.
func (r *Registry) Primary() Descriptor {
	return r.descriptors[r.primary].clone()
}

// All returns every descriptor in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	for i, d := range r.descriptors {
		out[i] = d.clone()
	}
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		names[i] = d.Name
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.descriptors)
}
