package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// registryEntry holds a provider's metadata and factory
type registryEntry struct {
	meta    ProviderMeta
	factory Factory
}

// Registry manages provider registration and construction
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry // key: "provider:authMethod"
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register registers a provider with its metadata and factory
func (r *Registry) Register(meta ProviderMeta, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[meta.Key()] = registryEntry{
		meta:    meta,
		factory: factory,
	}
}

// New returns a provider instance for the given provider and auth method
func (r *Registry) New(ctx context.Context, p Provider, authMethod AuthMethod, ep Endpoint) (LLMProvider, error) {
	r.mu.RLock()
	entry, ok := r.entries[makeProviderKey(p, authMethod)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider not registered: %s:%s", p, authMethod)
	}
	return entry.factory(ctx, ep)
}

// Meta returns the metadata for a specific provider configuration
func (r *Registry) Meta(p Provider, authMethod AuthMethod) (ProviderMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[makeProviderKey(p, authMethod)]
	if !ok {
		return ProviderMeta{}, false
	}
	return entry.meta, true
}

// Metas returns all registered provider metadata sorted by key
func (r *Registry) Metas() []ProviderMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metas := make([]ProviderMeta, 0, len(r.entries))
	for _, entry := range r.entries {
		metas = append(metas, entry.meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Key() < metas[j].Key() })
	return metas
}

// makeProviderKey creates a unique key for provider and auth method combination
func makeProviderKey(p Provider, authMethod AuthMethod) string {
	return string(p) + ":" + string(authMethod)
}
