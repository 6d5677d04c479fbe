package registry

import (
	"errors"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// ErrContextMagnitude is returned by ConvertMagnitude when the conversion
// would go through a context transformation.
var ErrContextMagnitude = errors.New("context conversions are only available for float64 magnitudes")

// conversion is a resolved src -> dst plan. from and to are set when the
// source or destination holds an offset unit.
type conversion struct {
	from   units.Converter
	factor float64
	to     units.Converter
}

func (c conversion) apply(v float64) float64 {
	if c.from != nil {
		v = c.from.ToReference(v)
	}
	v *= c.factor
	if c.to != nil {
		v = c.to.FromReference(v)
	}
	return v
}

func applyTo[M units.Magnitude[M]](c conversion, m M) M {
	if c.from != nil {
		m = units.ToReferenceOf(c.from, m)
	}
	m = m.Scaled(c.factor)
	if c.to != nil {
		m = units.FromReferenceOf(c.to, m)
	}
	return m
}

// Convert converts value from the src units expression to dst.
func (r *Registry) Convert(value float64, src, dst string) (float64, error) {
	s, err := r.ParseUnits(src)
	if err != nil {
		return 0, err
	}
	d, err := r.ParseUnits(dst)
	if err != nil {
		return 0, err
	}
	return r.ConvertUnits(value, s, d)
}

// ConvertUnits converts value between two containers of unit names.
// Enabled contexts are consulted first when the dimensionalities differ.
func (r *Registry) ConvertUnits(value float64, src, dst units.Container) (float64, error) {
	if src.Equal(dst) {
		return value, nil
	}
	if r.active.Len() > 0 {
		var err error
		if value, src, err = r.applyContexts(value, src, dst); err != nil {
			return 0, err
		}
	}
	p, err := r.plan(src, dst)
	if err != nil {
		return 0, err
	}
	return p.apply(value), nil
}

// ConvertMagnitude converts any magnitude type between two units
// expressions. Conversions that need a context transformation fail with
// ErrContextMagnitude.
func ConvertMagnitude[M units.Magnitude[M]](r *Registry, m M, src, dst string) (M, error) {
	s, err := r.ParseUnits(src)
	if err != nil {
		return m, err
	}
	d, err := r.ParseUnits(dst)
	if err != nil {
		return m, err
	}
	if s.Equal(d) {
		return m, nil
	}
	if r.active.Len() > 0 {
		path, err := r.contextPath(s, d)
		if err != nil {
			return m, err
		}
		if len(path) > 0 {
			return m, ErrContextMagnitude
		}
	}
	p, err := r.plan(s, d)
	if err != nil {
		return m, err
	}
	return applyTo(p, m), nil
}

// contextPath returns the dimensionalities visited between src and dst in
// the enabled context graph, or nil when no transformation applies.
func (r *Registry) contextPath(src, dst units.Container) ([]units.Container, error) {
	srcDim, err := r.DimensionalityOf(src)
	if err != nil {
		return nil, err
	}
	dstDim, err := r.DimensionalityOf(dst)
	if err != nil {
		return nil, err
	}
	if srcDim.Equal(dstDim) {
		return nil, nil
	}
	return r.active.Path(srcDim, dstDim), nil
}

func (r *Registry) applyContexts(value float64, src, dst units.Container) (float64, units.Container, error) {
	path, err := r.contextPath(src, dst)
	if err != nil || len(path) == 0 {
		return value, src, err
	}

	t := parser.Term{Scale: value, Units: src}
	for i := 0; i+1 < len(path); i++ {
		if t, err = r.active.Transform(path[i], path[i+1], t); err != nil {
			return 0, units.Container{}, err
		}
	}
	u, err := r.canonical(t.Units)
	if err != nil {
		return 0, units.Container{}, err
	}
	r.logger.Debug("converted through contexts", "from", src.String(), "to", u.String(), "contexts", r.active.Names())
	return t.Scale, u, nil
}

// plan resolves and caches the conversion between two canonical containers.
func (r *Registry) plan(src, dst units.Container) (conversion, error) {
	key := src.Key() + "->" + dst.Key()
	if p, ok := r.cache.plans[key]; ok {
		return p, nil
	}

	srcOffset, ok := r.offsetUnit(src)
	if !ok {
		return conversion{}, &units.OffsetUnitCalculusError{Units1: src.String(), Units2: dst.String()}
	}
	dstOffset, ok := r.offsetUnit(dst)
	if !ok {
		return conversion{}, &units.OffsetUnitCalculusError{Units1: src.String(), Units2: dst.String()}
	}

	srcDim, err := r.DimensionalityOf(src)
	if err != nil {
		return conversion{}, err
	}
	dstDim, err := r.DimensionalityOf(dst)
	if err != nil {
		return conversion{}, err
	}
	if !srcDim.Equal(dstDim) {
		return conversion{}, &units.DimensionalityError{
			Units1: src.String(),
			Units2: dst.String(),
			Dim1:   srcDim.String(),
			Dim2:   dstDim.String(),
		}
	}

	p := conversion{}
	if srcOffset != "" {
		def := r.units[srcOffset]
		p.from = def.Converter()
		src = src.Remove(srcOffset).Mul(def.Reference())
	}
	if dstOffset != "" {
		def := r.units[dstOffset]
		p.to = def.Converter()
		dst = dst.Remove(dstOffset).Mul(def.Reference())
	}

	if p.factor, _, err = r.rootUnits(src.Div(dst), true); err != nil {
		return conversion{}, err
	}
	r.cache.plans[key] = p
	return p, nil
}

// offsetUnit returns the single offset unit of c, or "" when c is purely
// multiplicative. ok is false when offset units appear in a form that has
// no unambiguous conversion.
func (r *Registry) offsetUnit(c units.Container) (name string, ok bool) {
	var found []string
	for _, k := range c.Keys() {
		if u, exists := r.units[k]; exists && !u.IsMultiplicative() {
			found = append(found, k)
		}
	}
	switch {
	case len(found) == 0:
		return "", true
	case len(found) > 1:
		return "", false
	case c.Len() > 1 && !r.autoconvertOffset:
		return "", false
	}
	if exp, _ := c.Get(found[0]); exp != 1 {
		return "", false
	}
	return found[0], true
}
