package registry

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// ErrScaledUnits is returned when a units expression carries a numeric factor.
var ErrScaledUnits = errors.New("unit expression cannot have a scaling factor")

// ParseUnits parses a product of units such as "km / h ** 2" into a
// container of canonical names. Every unknown name is reported in a single
// UndefinedUnitError.
func (r *Registry) ParseUnits(expr string) (units.Container, error) {
	return r.parseUnits(expr, r.defaultAsDelta)
}

func (r *Registry) parseUnits(expr string, asDelta bool) (units.Container, error) {
	expr = strings.TrimSpace(r.preprocess(expr))
	if expr == "" {
		return units.Dimensionless, nil
	}
	cacheKey := fmt.Sprintf("%t|%s", asDelta, expr)
	if c, ok := r.cache.parsed[cacheKey]; ok {
		return c, nil
	}

	t, err := parser.ParseWith(expr, parser.Env{})
	if err != nil {
		return units.Container{}, err
	}
	if t.Scale != 1 {
		return units.Container{}, fmt.Errorf("%w: %q", ErrScaledUnits, expr)
	}

	many := t.Units.Len() > 1
	out := units.Container{}
	var undefined []string
	for _, name := range t.Units.Keys() {
		exp, _ := t.Units.Get(name)
		canonical, err := r.GetName(name)
		if err != nil {
			var undef *units.UndefinedUnitError
			if errors.As(err, &undef) {
				undefined = append(undefined, name)
				continue
			}
			return units.Container{}, err
		}
		if canonical == "" {
			continue
		}
		if asDelta && (many || exp != 1) && !r.units[canonical].IsMultiplicative() {
			canonical = "delta_" + canonical
		}
		out = out.Add(canonical, exp)
	}
	if len(undefined) > 0 {
		return units.Container{}, units.NewUndefinedUnitError(undefined...)
	}

	r.cache.parsed[cacheKey] = out
	return out, nil
}

// canonical renames every unit of c to its canonical name.
func (r *Registry) canonical(c units.Container) (units.Container, error) {
	out := units.Container{}
	var undefined []string
	for _, name := range c.Keys() {
		exp, _ := c.Get(name)
		canonical, err := r.GetName(name)
		if err != nil {
			undefined = append(undefined, name)
			continue
		}
		if canonical != "" {
			out = out.Add(canonical, exp)
		}
	}
	if len(undefined) > 0 {
		return units.Container{}, units.NewUndefinedUnitError(undefined...)
	}
	return out, nil
}

// ParseExpression evaluates an expression such as "2.5 km / h" into a
// quantity with canonical units.
func (r *Registry) ParseExpression(expr string) (Quantity, error) {
	return r.ParseExpressionWith(expr, nil)
}

// ParseExpressionWith is ParseExpression with numeric values bound to
// names. Bound names take precedence over units.
func (r *Registry) ParseExpressionWith(expr string, values map[string]float64) (Quantity, error) {
	vars := make(map[string]parser.Term, len(values))
	for k, v := range values {
		vars[k] = parser.Number(v)
	}
	t, err := parser.ParseWith(r.preprocess(expr), parser.Env{Vars: vars})
	if err != nil {
		return Quantity{}, err
	}
	u, err := r.canonical(t.Units)
	if err != nil {
		return Quantity{}, err
	}
	return r.Quantity(t.Scale, u), nil
}

// GetDimensionality reduces a unit or dimension expression, such as
// "km / h" or "[length] / [time]", to base dimensions.
func (r *Registry) GetDimensionality(expr string) (units.Container, error) {
	t, err := parser.ParseWith(r.preprocess(expr), parser.Env{})
	if err != nil {
		return units.Container{}, err
	}
	return r.DimensionalityOf(t.Units)
}

// DimensionalityOf reduces c to base dimensions. Keys may be unit names in
// any resolvable form or dimension names. Results are memoised.
func (r *Registry) DimensionalityOf(c units.Container) (units.Container, error) {
	if c.IsEmpty() {
		return units.Dimensionless, nil
	}
	key := c.Key()
	if dim, ok := r.cache.dimensionality[key]; ok {
		return dim, nil
	}

	acc := make(map[string]float64)
	if err := r.dimensionality(c, 1, acc, make(map[string]bool)); err != nil {
		return units.Container{}, err
	}
	dim := units.NewContainer(acc)

	r.cache.dimensionality[key] = dim
	return dim, nil
}

func (r *Registry) dimensionality(ref units.Container, exp float64, acc map[string]float64, visiting map[string]bool) error {
	for _, key := range ref.Keys() {
		e, _ := ref.Get(key)
		exp2 := exp * e

		var name string
		var next units.Container
		if key == "[]" {
			continue
		}
		if units.IsDimensionName(key) {
			d, ok := r.dimensions[key]
			if !ok {
				return units.NewUndefinedUnitError(key)
			}
			if d.IsBase() {
				acc[d.Name()] += exp2
				continue
			}
			name, next = d.Name(), d.Reference()
		} else {
			canonical, err := r.GetName(key)
			if err != nil {
				return err
			}
			if canonical == "" {
				continue
			}
			name, next = canonical, r.units[canonical].Reference()
		}

		if visiting[name] {
			return units.NewDefinitionSyntaxError("circular reference while resolving %s", name)
		}
		visiting[name] = true
		err := r.dimensionality(next, exp2, acc, visiting)
		delete(visiting, name)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetRootUnits reduces a units expression to base units, returning the
// multiplicative factor and the base-unit container. Offset units cannot be
// folded into a factor and yield an OffsetUnitCalculusError.
func (r *Registry) GetRootUnits(expr string) (float64, units.Container, error) {
	c, err := r.ParseUnits(expr)
	if err != nil {
		return 0, units.Container{}, err
	}
	return r.RootUnitsOf(c)
}

// GetBaseUnits is GetRootUnits; the registry has a single unit system.
func (r *Registry) GetBaseUnits(expr string) (float64, units.Container, error) {
	return r.GetRootUnits(expr)
}

// RootUnitsOf is GetRootUnits for a container.
func (r *Registry) RootUnitsOf(c units.Container) (float64, units.Container, error) {
	return r.rootUnits(c, true)
}

func (r *Registry) rootUnits(c units.Container, checkNonMult bool) (float64, units.Container, error) {
	if c.IsEmpty() {
		return 1, units.Dimensionless, nil
	}
	key := c.Key()
	if checkNonMult {
		if ru, ok := r.cache.rootUnits[key]; ok {
			return ru.factor, ru.units, nil
		}
	}

	factor := 1.0
	acc := make(map[string]float64)
	if err := r.rootUnitsRecurse(c, 1, &factor, acc, checkNonMult, make(map[string]bool)); err != nil {
		return 0, units.Container{}, err
	}
	out := units.NewContainer(acc)

	if checkNonMult {
		r.cache.rootUnits[key] = rootUnits{factor: factor, units: out}
	}
	return factor, out, nil
}

func (r *Registry) rootUnitsRecurse(ref units.Container, exp float64, factor *float64,
	acc map[string]float64, checkNonMult bool, visiting map[string]bool) error {
	keys := ref.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		e, _ := ref.Get(key)
		exp2 := exp * e

		name, err := r.GetName(key)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}
		def := r.units[name]
		if checkNonMult && !def.IsMultiplicative() {
			return &units.OffsetUnitCalculusError{Units1: name}
		}
		if def.IsBase() {
			acc[name] += exp2
			continue
		}

		*factor *= math.Pow(def.Converter().Scale(), exp2)
		if visiting[name] {
			return units.NewDefinitionSyntaxError("circular reference while resolving %s", name)
		}
		visiting[name] = true
		err = r.rootUnitsRecurse(def.Reference(), exp2, factor, acc, checkNonMult, visiting)
		delete(visiting, name)
		if err != nil {
			return err
		}
	}
	return nil
}

// equivalents maps each dimensionality key to the canonical names of the
// units sharing it. Units that fail to resolve are logged and skipped.
func (r *Registry) equivalents() map[string][]string {
	if r.cache.equivalents != nil {
		return r.cache.equivalents
	}
	eq := make(map[string][]string)
	for _, name := range r.unitNames() {
		dim, err := r.DimensionalityOf(units.Unit(name))
		if err != nil {
			r.logger.Warn("could not resolve unit", "unit", name, "error", err)
			continue
		}
		eq[dim.Key()] = append(eq[dim.Key()], name)
	}
	r.cache.equivalents = eq
	return eq
}

// GetCompatibleUnits lists the canonical names of units with the same
// dimensionality as expr, widened by the dimensionalities the enabled
// contexts connect it to.
func (r *Registry) GetCompatibleUnits(expr string) ([]string, error) {
	c, err := r.ParseUnits(expr)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, nil
	}
	dim, err := r.DimensionalityOf(c)
	if err != nil {
		return nil, err
	}

	eq := r.equivalents()
	out := slices.Clone(eq[dim.Key()])
	if r.active.Len() > 0 {
		for _, node := range r.active.Reachable(dim) {
			out = append(out, eq[node.Key()]...)
		}
	}
	sort.Strings(out)
	return slices.Compact(out), nil
}
