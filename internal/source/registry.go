// Package source keeps the set of monitored chats and parses their configured URLs.
package source

import (
	"sync"

	"tg_monitor/internal/model"
)

// Registry holds the sources resolved at startup, keyed by platform ID.
// It is filled once before the pipeline starts and read afterwards.
type Registry struct {
	mu    sync.RWMutex
	byID  map[int64]model.Source
	order []int64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int64]model.Source)}
}

// Register adds a source. A later registration of the same platform ID
// replaces the earlier one but keeps its position.
func (r *Registry) Register(src model.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[src.PlatformID]; !ok {
		r.order = append(r.order, src.PlatformID)
	}
	r.byID[src.PlatformID] = src
}

// Lookup returns the registered source with the given platform ID.
func (r *Registry) Lookup(platformID int64) (model.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.byID[platformID]
	return src, ok
}

// All returns the registered sources in registration order.
func (r *Registry) All() []model.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
