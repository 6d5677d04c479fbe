package server

import (
	"sync"

	"github.com/leapstack-labs/leapunits/pkg/registry"
)

// BuildFunc creates a fresh registry.
type BuildFunc func() (*registry.Registry, error)

// Holder guards a registry shared by concurrent callers. A registry is not
// safe for concurrent use, and even lookups fill its caches, so every access
// goes through Do.
type Holder struct {
	mu         sync.Mutex
	reg        *registry.Registry
	build      BuildFunc
	generation int
}

// NewHolder builds the first registry.
func NewHolder(build BuildFunc) (*Holder, error) {
	reg, err := build()
	if err != nil {
		return nil, err
	}
	return &Holder{reg: reg, build: build, generation: 1}, nil
}

// Do calls fn with exclusive access to the registry.
func (h *Holder) Do(fn func(reg *registry.Registry) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.reg)
}

// Reload builds a new registry and swaps it in. On error the current
// registry stays in place.
func (h *Holder) Reload() error {
	reg, err := h.build()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.reg = reg
	h.generation++
	h.mu.Unlock()
	return nil
}

// Generation counts successful builds.
func (h *Holder) Generation() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}
