package ws

import (
	"context"
	"sync"
)

// Registry tracks every live connection's cancel function so shutdown and
// administrative teardown can reach them. Keys are connection IDs, not
// session IDs: one session may legitimately hold several connections.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

// Add registers a connection's cancel function.
func (r *Registry) Add(connID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[connID] = cancel
}

// Remove drops a connection. A no-op when already removed.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, connID)
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// Shutdown cancels every live connection. Each supervisor observes its
// context ending and tears its connection down.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.cancels))
	for _, cancel := range r.cancels {
		cancels = append(cancels, cancel)
	}
	r.cancels = make(map[string]context.CancelFunc)
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
