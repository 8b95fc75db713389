// Package extensibility provides ready-made registries, actions and event
// sources for interpreters.
package extensibility

import (
	"sync"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// Registry is a concurrency-safe core.Registry. References that were not
// registered explicitly fall back to expressions (see ParseGuard and
// ParseAction) unless expressions are disabled.
type Registry struct {
	mu          sync.RWMutex
	actions     map[primitives.ActionRef]core.ActionFunc
	guards      map[primitives.GuardRef]core.GuardFunc
	services    map[primitives.ServiceRef]core.ServiceFunc
	expressions bool
}

// NewRegistry returns an empty registry with expression fallback enabled.
func NewRegistry() *Registry {
	return &Registry{
		actions:     make(map[primitives.ActionRef]core.ActionFunc),
		guards:      make(map[primitives.GuardRef]core.GuardFunc),
		services:    make(map[primitives.ServiceRef]core.ServiceFunc),
		expressions: true,
	}
}

// WithoutExpressions disables the expression fallback.
func (r *Registry) WithoutExpressions() *Registry {
	r.mu.Lock()
	r.expressions = false
	r.mu.Unlock()
	return r
}

func (r *Registry) RegisterAction(ref primitives.ActionRef, fn core.ActionFunc) *Registry {
	r.mu.Lock()
	r.actions[ref] = fn
	r.mu.Unlock()
	return r
}

func (r *Registry) RegisterGuard(ref primitives.GuardRef, fn core.GuardFunc) *Registry {
	r.mu.Lock()
	r.guards[ref] = fn
	r.mu.Unlock()
	return r
}

func (r *Registry) RegisterService(ref primitives.ServiceRef, fn core.ServiceFunc) *Registry {
	r.mu.Lock()
	r.services[ref] = fn
	r.mu.Unlock()
	return r
}

func (r *Registry) Action(ref primitives.ActionRef) (core.ActionFunc, bool) {
	r.mu.RLock()
	fn, ok := r.actions[ref]
	expr := r.expressions
	r.mu.RUnlock()
	if ok || !expr {
		return fn, ok
	}
	fn, err := ParseAction(string(ref))
	return fn, err == nil
}

func (r *Registry) Guard(ref primitives.GuardRef) (core.GuardFunc, bool) {
	r.mu.RLock()
	fn, ok := r.guards[ref]
	expr := r.expressions
	r.mu.RUnlock()
	if ok || !expr {
		return fn, ok
	}
	fn, err := ParseGuard(string(ref))
	return fn, err == nil
}

func (r *Registry) Service(ref primitives.ServiceRef) (core.ServiceFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.services[ref]
	return fn, ok
}
