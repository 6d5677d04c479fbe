package contexts

import (
	"github.com/leapstack-labs/leapunits/internal/dag"
	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Chain is the stack of enabled contexts. Contexts pushed later take
// precedence when two of them define the same edge.
type Chain struct {
	stack []*Context
	graph *dag.Graph
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Push enables ctxs in order, so the last one has the highest precedence.
func (c *Chain) Push(ctxs ...*Context) {
	c.stack = append(c.stack, ctxs...)
	c.graph = nil
}

// Pop disables the n most recently enabled contexts. n <= 0 or n larger
// than the stack disables all of them.
func (c *Chain) Pop(n int) {
	if n <= 0 || n > len(c.stack) {
		n = len(c.stack)
	}
	c.stack = c.stack[:len(c.stack)-n]
	c.graph = nil
}

// Len returns the number of enabled contexts.
func (c *Chain) Len() int {
	return len(c.stack)
}

// Names lists the enabled contexts, highest precedence first.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.stack))
	for i := len(c.stack) - 1; i >= 0; i-- {
		names = append(names, c.stack[i].Name)
	}
	return names
}

// Defaults returns the parameters of the most recently enabled context.
func (c *Chain) Defaults() map[string]float64 {
	if len(c.stack) == 0 {
		return map[string]float64{}
	}
	return c.stack[len(c.stack)-1].Defaults
}

// lookup finds the highest precedence context defining src -> dst.
func (c *Chain) lookup(src, dst units.Container) *Context {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].HasTransformation(src, dst) {
			return c.stack[i]
		}
	}
	return nil
}

// Transform applies the rule for src -> dst of the highest precedence
// context that defines it.
func (c *Chain) Transform(src, dst units.Container, value parser.Term) (parser.Term, error) {
	ctx := c.lookup(src, dst)
	if ctx == nil {
		return parser.Term{}, units.NewDefinitionSyntaxError("no enabled context converts %s to %s", src, dst)
	}
	return ctx.Transform(src, dst, value)
}

// Graph returns the directed graph between dimensionalities built from
// every enabled context. Node IDs are container keys and node data the
// containers themselves.
func (c *Chain) Graph() *dag.Graph {
	if c.graph != nil {
		return c.graph
	}
	g := dag.NewGraph()
	for i := len(c.stack) - 1; i >= 0; i-- {
		for _, e := range c.stack[i].rules.edges {
			g.AddNode(e.Src.Key(), e.Src)
			g.AddNode(e.Dst.Key(), e.Dst)
			// self edges carry no path information
			_ = g.AddEdge(e.Src.Key(), e.Dst.Key())
		}
	}
	c.graph = g
	return g
}

// Path returns the dimensionalities along a shortest path from src to dst,
// or nil when the enabled contexts do not connect them.
func (c *Chain) Path(src, dst units.Container) []units.Container {
	g := c.Graph()
	ids := g.ShortestPath(src.Key(), dst.Key())
	if len(ids) < 2 {
		return nil
	}
	path := make([]units.Container, len(ids))
	for i, id := range ids {
		node, _ := g.GetNode(id)
		path[i] = node.Data.(units.Container)
	}
	return path
}

// Reachable returns every dimensionality connected to src by enabled
// contexts, src included when it appears in the graph.
func (c *Chain) Reachable(src units.Container) []units.Container {
	g := c.Graph()
	var out []units.Container
	for _, id := range g.Downstream([]string{src.Key()}) {
		node, _ := g.GetNode(id)
		out = append(out, node.Data.(units.Container))
	}
	return out
}
