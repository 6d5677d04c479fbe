package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapunits/internal/dag"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// ErrCircularDefinition is returned by Validate when units reference each
// other in a loop.
var ErrCircularDefinition = errors.New("circular unit definition")

// ValidationReport summarizes a Validate run.
type ValidationReport struct {
	// Units is the number of units checked, prefixed forms included.
	Units int
	// References is the number of unit-to-unit references.
	References int
	// Levels groups units by definition depth; base units come first.
	Levels [][]string
	// Roots are the units defined without reference to another unit.
	Roots []string
	// Unresolved maps units that cannot be reduced to the reason.
	Unresolved map[string]string

	graph *dag.Graph
}

// OK reports whether every unit resolved.
func (v *ValidationReport) OK() bool {
	return len(v.Unresolved) == 0
}

// Uses returns the units name is directly defined from.
func (v *ValidationReport) Uses(name string) []string {
	return v.graph.GetParents(name)
}

// UsedBy returns the units directly defined from name.
func (v *ValidationReport) UsedBy(name string) []string {
	return v.graph.GetChildren(name)
}

// DependsOn returns every unit name is defined from, transitively.
func (v *ValidationReport) DependsOn(name string) []string {
	return v.graph.Upstream(name)
}

// Validate builds the dependency graph between units, rejects cycles and
// resolves every unit to base dimensions and base units. Units that do not
// resolve are logged and listed in the report. The dimensional-equivalents
// index used by GetCompatibleUnits is rebuilt as a side effect.
func (r *Registry) Validate() (*ValidationReport, error) {
	g := dag.NewGraph()
	report := &ValidationReport{Unresolved: make(map[string]string), graph: g}

	queue := r.unitNames()
	for _, name := range queue {
		g.AddNode(name, r.units[name])
	}

	for i := 0; i < len(queue); i++ {
		name := queue[i]
		u := r.units[name]
		if u.IsBase() {
			continue
		}
		for _, ref := range u.Reference().Keys() {
			target, err := r.GetName(ref)
			if err != nil {
				report.Unresolved[name] = err.Error()
				continue
			}
			if target == "" {
				continue
			}
			if _, ok := g.GetNode(target); !ok {
				g.AddNode(target, r.units[target])
				queue = append(queue, target)
			}
			if err := g.AddEdge(target, name); err != nil {
				return nil, fmt.Errorf("%w: %s references itself", ErrCircularDefinition, name)
			}
		}
	}

	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("%w: %s", ErrCircularDefinition, strings.Join(path, " -> "))
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	report.Levels = levels
	report.Roots = g.Roots()
	report.Units = g.NodeCount()
	report.References = g.EdgeCount()

	// dependencies first, so each unit reuses the cached results of the
	// units it is defined from
	for _, node := range order {
		name := node.ID
		if _, bad := report.Unresolved[name]; bad {
			continue
		}
		c := units.Unit(name)
		if _, err := r.DimensionalityOf(c); err != nil {
			report.Unresolved[name] = err.Error()
			continue
		}
		if _, _, err := r.rootUnits(c, false); err != nil {
			report.Unresolved[name] = err.Error()
		}
	}
	for name, reason := range report.Unresolved {
		r.logger.Warn("unit does not resolve", "unit", name, "reason", reason)
	}

	r.cache.equivalents = nil
	r.equivalents()
	r.logger.Debug("validated registry", "units", report.Units, "levels", len(report.Levels), "unresolved", len(report.Unresolved))
	return report, nil
}
