package registry

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/leapstack-labs/leapunits/pkg/contexts"
)

// ErrUnknownContext is returned when enabling a context that was never added.
var ErrUnknownContext = errors.New("unknown context")

// AddContext registers ctx under its name and aliases. A name already
// taken by another context is overridden with a warning.
func (r *Registry) AddContext(ctx *contexts.Context) error {
	if ctx.Name == "" {
		return errors.New("context must have a name")
	}
	for _, key := range append([]string{ctx.Name}, ctx.Aliases...) {
		if prev, ok := r.contexts[key]; ok && prev != ctx {
			r.logger.Warn("overriding context", "name", key, "previous", prev.Name)
		}
		r.contexts[key] = ctx
	}
	return nil
}

// RemoveContext unregisters the context known as name together with its
// aliases and returns it.
func (r *Registry) RemoveContext(name string) (*contexts.Context, error) {
	ctx, ok := r.contexts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContext, name)
	}
	for key, c := range r.contexts {
		if c == ctx {
			delete(r.contexts, key)
		}
	}
	return ctx, nil
}

// Context returns the context registered under name or alias.
func (r *Registry) Context(name string) (*contexts.Context, bool) {
	ctx, ok := r.contexts[name]
	return ctx, ok
}

// Contexts returns the names of the registered contexts, sorted.
func (r *Registry) Contexts() []string {
	seen := make(map[string]bool)
	for _, ctx := range r.contexts {
		seen[ctx.Name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveContexts lists the enabled contexts, highest precedence first.
func (r *Registry) ActiveContexts() []string {
	return r.active.Names()
}

// EnableContexts pushes the named contexts, in order, on top of the
// enabled ones. params override the context defaults. With no names, the
// most recently enabled context is pushed again with params applied.
func (r *Registry) EnableContexts(params map[string]float64, names ...string) error {
	if len(names) == 0 {
		top := r.active.Names()
		if len(top) == 0 {
			return errors.New("no context given and none enabled")
		}
		names = top[:1]
		params = mergeParams(r.active.Defaults(), params)
	}

	ctxs := make([]*contexts.Context, 0, len(names))
	for _, name := range names {
		ctx, ok := r.contexts[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContext, name)
		}
		if err := ctx.Normalize(r.DimensionalityOf); err != nil {
			return fmt.Errorf("context %s: %w", ctx.Name, err)
		}
		ctxs = append(ctxs, ctx.WithDefaults(params))
	}

	r.active.Push(ctxs...)
	r.resetCache()
	r.logger.Debug("enabled contexts", "contexts", names, "params", params)
	return nil
}

// DisableContexts pops the n most recently enabled contexts; n <= 0
// disables all of them.
func (r *Registry) DisableContexts(n int) {
	r.active.Pop(n)
	r.resetCache()
}

// WithContext runs fn with the named contexts enabled and disables them
// afterwards, whatever fn returns.
func (r *Registry) WithContext(names []string, params map[string]float64, fn func() error) error {
	before := r.active.Len()
	if err := r.EnableContexts(params, names...); err != nil {
		return err
	}
	defer func() {
		if n := r.active.Len() - before; n > 0 {
			r.DisableContexts(n)
		}
	}()
	return fn()
}

func mergeParams(base, overrides map[string]float64) map[string]float64 {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]float64{}
	}
	maps.Copy(out, overrides)
	return out
}
