package conn

import (
	"sync"

	"venuegate/internal/infra"
)

// Identity keys one live venue session. Two configs with the same identity
// share one Manager, which protects rate limits and avoids duplicate
// subscriptions from accidental double construction.
type Identity struct {
	Venue     string
	AccessKey string
	Sandbox   bool
}

// identityOf derives the session identity from config.
func identityOf(cfg *infra.Config) Identity {
	return Identity{
		Venue:     cfg.Venue.Name,
		AccessKey: cfg.Venue.AccessKey,
		Sandbox:   cfg.Venue.Sandbox,
	}
}

// Registry hands out one Manager per identity. It replaces a global
// singleton: construct one registry at setup and inject it where needed.
type Registry struct {
	mu       sync.Mutex
	managers map[Identity]*Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[Identity]*Manager)}
}

// Get returns the Manager for the config's identity, creating it on first use.
func (r *Registry) Get(cfg *infra.Config, buildFn ClientFactory) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := identityOf(cfg)
	if m, ok := r.managers[id]; ok {
		return m
	}
	m := NewManager(cfg, buildFn)
	r.managers[id] = m
	return m
}

// Reset stops and drops every managed session. Test hook.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, m := range r.managers {
		m.Stop()
		delete(r.managers, id)
	}
}
