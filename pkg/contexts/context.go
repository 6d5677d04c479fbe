// Package contexts implements named sets of extra conversion rules between
// dimensionalities, and the stack of contexts a registry has enabled.
package contexts

import (
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Transformation maps a value in the source dimensionality to a value in
// the destination dimensionality. params holds the context parameters.
type Transformation func(value parser.Term, params map[string]float64) (parser.Term, error)

// Edge is a (source, destination) pair of dimensionalities.
type Edge struct {
	Src units.Container
	Dst units.Container
}

func (e Edge) key() string {
	return e.Src.Key() + "->" + e.Dst.Key()
}

func (e Edge) String() string {
	return e.Src.String() + " -> " + e.Dst.String()
}

// transformations is shared between a context and the copies made by
// WithDefaults, so normalizing one normalizes all of them.
type transformations struct {
	edges      []Edge
	funcs      map[string]Transformation
	normalized bool
}

// Context is a named set of transformations with default parameters.
type Context struct {
	Name     string
	Aliases  []string
	Defaults map[string]float64

	rules *transformations
}

// New creates an empty context.
func New(name string, aliases []string, defaults map[string]float64) *Context {
	if defaults == nil {
		defaults = map[string]float64{}
	}
	return &Context{
		Name:     name,
		Aliases:  slices.Clone(aliases),
		Defaults: defaults,
		rules:    &transformations{funcs: map[string]Transformation{}},
	}
}

// AddTransformation registers fn for src -> dst, replacing any previous rule.
func (c *Context) AddTransformation(src, dst units.Container, fn Transformation) {
	e := Edge{Src: src, Dst: dst}
	k := e.key()
	if _, exists := c.rules.funcs[k]; !exists {
		c.rules.edges = append(c.rules.edges, e)
	}
	c.rules.funcs[k] = fn
}

// RemoveTransformation deletes the rule for src -> dst.
func (c *Context) RemoveTransformation(src, dst units.Container) {
	k := Edge{Src: src, Dst: dst}.key()
	if _, exists := c.rules.funcs[k]; !exists {
		return
	}
	delete(c.rules.funcs, k)
	c.rules.edges = slices.DeleteFunc(c.rules.edges, func(e Edge) bool { return e.key() == k })
}

// HasTransformation reports whether a rule exists for src -> dst.
func (c *Context) HasTransformation(src, dst units.Container) bool {
	_, ok := c.rules.funcs[Edge{Src: src, Dst: dst}.key()]
	return ok
}

// Edges returns the rules in definition order.
func (c *Context) Edges() []Edge {
	return slices.Clone(c.rules.edges)
}

// Transform applies the rule for src -> dst using the context defaults.
func (c *Context) Transform(src, dst units.Container, value parser.Term) (parser.Term, error) {
	fn, ok := c.rules.funcs[Edge{Src: src, Dst: dst}.key()]
	if !ok {
		return parser.Term{}, fmt.Errorf("context %s has no transformation %s", c.Name, Edge{Src: src, Dst: dst})
	}
	return fn(value, c.Defaults)
}

// WithDefaults returns a context sharing c's rules whose defaults are c's
// defaults updated with overrides. Without overrides c itself is returned.
func (c *Context) WithDefaults(overrides map[string]float64) *Context {
	if len(overrides) == 0 {
		return c
	}
	defaults := maps.Clone(c.Defaults)
	maps.Copy(defaults, overrides)
	return &Context{Name: c.Name, Aliases: c.Aliases, Defaults: defaults, rules: c.rules}
}

// Normalize rewrites every edge through toBase, usually the registry's
// dimensionality reduction. It runs once per set of rules.
func (c *Context) Normalize(toBase func(units.Container) (units.Container, error)) error {
	if c.rules.normalized {
		return nil
	}
	old := c.rules.edges
	funcs := c.rules.funcs
	c.rules.edges = nil
	c.rules.funcs = map[string]Transformation{}
	for _, e := range old {
		src, err := toBase(e.Src)
		if err != nil {
			return err
		}
		dst, err := toBase(e.Dst)
		if err != nil {
			return err
		}
		c.AddTransformation(src, dst, funcs[e.key()])
	}
	c.rules.normalized = true
	return nil
}
