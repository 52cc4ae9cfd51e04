package tenant

import (
	"fmt"
	"slices"
	"sync"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// Registry maps tenant ids to configs. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*Config
}

// NewRegistry validates and registers configs. Duplicate ids are rejected.
// The registry keeps its own copies.
func NewRegistry(configs ...*Config) (*Registry, error) {
	r := &Registry{tenants: make(map[string]*Config, len(configs))}
	for _, cfg := range configs {
		if err := r.Register(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a validated copy of cfg.
func (r *Registry) Register(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", trellerrors.ErrInvalidTenant)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tenants[cfg.ID]; exists {
		return fmt.Errorf("%w: tenant %q", trellerrors.ErrDuplicateID, cfg.ID)
	}
	r.tenants[cfg.ID] = cfg.Clone()
	return nil
}

// Resolve returns a private copy of the tenant's config.
func (r *Registry) Resolve(id string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", trellerrors.ErrUnknownTenant, id)
	}
	return cfg.Clone(), nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tenants[id]
	return ok
}

// IDs returns the registered tenant ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered tenants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}

// Filter returns a registry restricted to ids. An empty list returns every
// tenant. Unknown ids are an error.
func (r *Registry) Filter(ids []string) (*Registry, error) {
	if len(ids) == 0 {
		ids = r.IDs()
	}
	out := &Registry{tenants: make(map[string]*Config, len(ids))}
	for _, id := range ids {
		cfg, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		out.tenants[id] = cfg
	}
	return out, nil
}
