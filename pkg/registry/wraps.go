package registry

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Func is a function over positional arguments, the shape Wraps and Check
// decorate.
type Func func(args ...any) ([]any, error)

// WrapSpec declares the units of a wrapped function.
//
// Each entry of Args and Returns is either "" (leave the value alone), a
// units expression such as "meter / second", or a reference starting with
// "=". A reference made of a single name with exponent 1, such as "=A",
// defines A as the runtime units of that argument on its first appearance;
// any other reference, such as "=A**2/B", is a template over defined names.
type WrapSpec struct {
	Returns []string
	Args    []string
	// Lenient passes arguments with units that are not a Quantity through
	// unconverted. By default strings are parsed as quantities and any other
	// value is rejected.
	Lenient bool
	// Defaults holds default values by argument index; nil means none.
	Defaults []any
}

type wrapArg struct {
	kind     wrapKind
	units    units.Container
	variable string
}

type wrapKind int

const (
	wrapSkip wrapKind = iota
	wrapUnits
	wrapDefinition
	wrapDependent
)

// Wraps returns fn wrapped so that arguments are converted to the units of
// spec.Args before the call and results are returned as quantities in the
// units of spec.Returns.
func Wraps(reg *Registry, spec WrapSpec, fn Func) (Func, error) {
	args := make([]wrapArg, len(spec.Args))
	defined := make(map[string]bool)
	for i, s := range spec.Args {
		a, err := parseWrapArg(reg, s, defined, true)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = a
	}
	returns := make([]wrapArg, len(spec.Returns))
	for i, s := range spec.Returns {
		a, err := parseWrapArg(reg, s, defined, false)
		if err != nil {
			return nil, fmt.Errorf("return value %d: %w", i, err)
		}
		returns[i] = a
	}
	for i, a := range append(args, returns...) {
		if a.kind != wrapDependent {
			continue
		}
		for _, name := range a.units.Keys() {
			if !defined[name] {
				return nil, fmt.Errorf("spec %d references %s, which no argument defines with =%s", i, name, name)
			}
		}
	}

	return func(values ...any) ([]any, error) {
		values, err := withDefaults(values, spec.Defaults, len(args))
		if err != nil {
			return nil, err
		}

		call := make([]any, len(values))
		copy(call, values)
		bound := make(map[string]units.Container)

		for i, a := range args {
			if a.kind != wrapDefinition {
				continue
			}
			q, ok := values[i].(Quantity)
			if !ok {
				return nil, fmt.Errorf("argument %d defines %s and must be a quantity, got %T", i, a.variable, values[i])
			}
			bound[a.variable] = q.Units
			call[i] = q.Magnitude
		}

		for i, a := range args {
			if a.kind != wrapDependent {
				continue
			}
			q, ok := values[i].(Quantity)
			if !ok {
				return nil, fmt.Errorf("argument %d must be a quantity, got %T", i, values[i])
			}
			m, err := reg.ConvertUnits(q.Magnitude, q.Units, substitute(a.units, bound))
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			call[i] = m
		}

		for i, a := range args {
			if a.kind != wrapUnits {
				continue
			}
			m, err := wrapValue(reg, values[i], a.units, !spec.Lenient)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			call[i] = m
		}

		results, err := fn(call...)
		if err != nil {
			return nil, err
		}

		for i, r := range returns {
			if i >= len(results) || r.kind == wrapSkip {
				continue
			}
			m, ok := toFloat(results[i])
			if !ok {
				return nil, fmt.Errorf("return value %d is %T, not a number", i, results[i])
			}
			u := r.units
			if r.kind == wrapDependent {
				u = substitute(u, bound)
			}
			results[i] = reg.Quantity(m, u)
		}
		return results, nil
	}, nil
}

// parseWrapArg reads one entry of a WrapSpec. Only arguments may define
// variables.
func parseWrapArg(reg *Registry, s string, defined map[string]bool, canDefine bool) (wrapArg, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return wrapArg{kind: wrapSkip}, nil
	}
	if ref, ok := strings.CutPrefix(s, "="); ok {
		t, err := parser.Parse(ref)
		if err != nil {
			return wrapArg{}, err
		}
		if name, single := t.Units.Single(); single && t.Scale == 1 {
			if exp, _ := t.Units.Get(name); canDefine && exp == 1 && !defined[name] {
				defined[name] = true
				return wrapArg{kind: wrapDefinition, units: t.Units, variable: name}, nil
			}
		}
		return wrapArg{kind: wrapDependent, units: t.Units}, nil
	}
	u, err := reg.ParseUnits(s)
	if err != nil {
		return wrapArg{}, err
	}
	return wrapArg{kind: wrapUnits, units: u}, nil
}

func wrapValue(reg *Registry, v any, dst units.Container, strict bool) (any, error) {
	switch x := v.(type) {
	case Quantity:
		return reg.ConvertUnits(x.Magnitude, x.Units, dst)
	case string:
		if !strict {
			return v, nil
		}
		q, err := reg.ParseExpression(x)
		if err != nil {
			return nil, err
		}
		return reg.ConvertUnits(q.Magnitude, q.Units, dst)
	}
	if strict {
		return nil, fmt.Errorf("arguments with units must be a quantity or a string, got %T", v)
	}
	return v, nil
}

// substitute replaces every variable of tmpl by the units bound to it,
// raised to the variable's exponent.
func substitute(tmpl units.Container, bound map[string]units.Container) units.Container {
	out := units.Container{}
	tmpl.Each(func(name string, exp float64) {
		out = out.Mul(bound[name].Pow(exp))
	})
	return out
}

func withDefaults(values, defaults []any, n int) ([]any, error) {
	if len(values) >= n {
		return values, nil
	}
	out := make([]any, n)
	copy(out, values)
	for i := len(values); i < n; i++ {
		if i >= len(defaults) || defaults[i] == nil {
			return nil, fmt.Errorf("missing argument %d and no default given", i)
		}
		out[i] = defaults[i]
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case units.Float:
		return float64(x), true
	}
	return 0, false
}

// Check returns fn wrapped so that each argument is checked against the
// dimensionality at the same position of dims before the call. An empty
// entry skips its argument. Values that are not quantities count as
// dimensionless.
func Check(reg *Registry, dims []string, fn Func) (Func, error) {
	want := make([]units.Container, len(dims))
	for i, d := range dims {
		if strings.TrimSpace(d) == "" {
			continue
		}
		dim, err := reg.GetDimensionality(d)
		if err != nil {
			return nil, fmt.Errorf("dimension %d: %w", i, err)
		}
		want[i] = dim
	}

	return func(values ...any) ([]any, error) {
		if len(dims) > len(values) {
			return nil, fmt.Errorf("function takes %d arguments, but %d dimensions were given", len(values), len(dims))
		}
		for i, d := range dims {
			if strings.TrimSpace(d) == "" {
				continue
			}
			got := units.Dimensionless
			if q, ok := values[i].(Quantity); ok {
				var err error
				if got, err = q.Dimensionality(); err != nil {
					return nil, err
				}
			}
			if !got.Equal(want[i]) {
				return nil, &units.DimensionalityError{
					Units1: fmt.Sprint(values[i]),
					Units2: "a quantity of",
					Dim1:   got.String(),
					Dim2:   want[i].String(),
				}
			}
		}
		return fn(values...)
	}, nil
}
