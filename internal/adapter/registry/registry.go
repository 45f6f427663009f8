// Package registry maps catalog model ids to provider adapters.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbz/modelarena/internal/domain"
)

// Registry implements domain.AdapterRegistry. Exactly one adapter instance
// is held per provider and reused across calls.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]domain.Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]domain.Adapter),
	}
}

// Register adds a provider adapter to the registry.
func (r *Registry) Register(_ context.Context, adapter domain.Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	name := adapter.ProviderName()
	if name == "" {
		return errors.New("adapter provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter for provider %s already registered", name)
	}

	r.adapters[name] = adapter
	return nil
}

// Resolve returns the adapter and metadata for a model id. It fails with
// ErrUnknownModel before any adapter is touched, so an invalid id causes no
// partial side effects.
func (r *Registry) Resolve(_ context.Context, id domain.ModelID) (domain.Adapter, domain.ModelMetadata, error) {
	meta, ok := domain.Lookup(id)
	if !ok {
		return nil, domain.ModelMetadata{}, fmt.Errorf("%w: %s", domain.ErrUnknownModel, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[meta.Provider]
	if !ok {
		return nil, domain.ModelMetadata{}, fmt.Errorf("%w: no adapter for provider %s", domain.ErrUnknownModel, meta.Provider)
	}

	return adapter, meta, nil
}

// Providers returns the names of all registered providers.
func (r *Registry) Providers(_ context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
