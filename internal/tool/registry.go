package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/yanmxa/finsight/internal/provider"
)

// Registry maps tool names to tools, keeping registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Set returns the subset of the registry named by names. A nil names
// selects every tool.
func (r *Registry) Set(names []string) *Set {
	if names == nil {
		names = r.List()
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return &Set{registry: r, allowed: allowed, names: names}
}

// Set is the tool subset offered to the model for one request.
type Set struct {
	registry *Registry
	allowed  map[string]bool
	names    []string
}

// Names returns the tool names in the set.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Tools returns the provider definitions of the set's tools.
func (s *Set) Tools() []provider.Tool {
	if s == nil {
		return nil
	}
	defs := make([]provider.Tool, 0, len(s.names))
	for _, n := range s.names {
		t, ok := s.registry.Get(n)
		if !ok {
			continue
		}
		defs = append(defs, provider.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// Execute runs a tool of the set. Tools outside the set are unknown.
func (s *Set) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	if s == nil || !s.allowed[name] {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	t, ok := s.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Execute(ctx, params)
}
