package units

import "math"

// Magnitude is the capability set a numeric value needs to be converted
// between units. M is the implementing type itself.
type Magnitude[M any] interface {
	Add(M) M
	Sub(M) M
	Mul(M) M
	Div(M) M
	Pow(exp float64) M
	Cmp(M) int
	// Scaled multiplies by a plain factor.
	Scaled(factor float64) M
	// Shifted adds a plain offset.
	Shifted(offset float64) M
}

// Float is the float64 magnitude.
type Float float64

func (f Float) Add(o Float) Float { return f + o }
func (f Float) Sub(o Float) Float { return f - o }
func (f Float) Mul(o Float) Float { return f * o }
func (f Float) Div(o Float) Float { return f / o }
func (f Float) Pow(exp float64) Float { return Float(math.Pow(float64(f), exp)) }
func (f Float) Scaled(factor float64) Float { return f * Float(factor) }
func (f Float) Shifted(offset float64) Float { return f + Float(offset) }

func (f Float) Cmp(o Float) int {
	switch {
	case f < o:
		return -1
	case f > o:
		return 1
	}
	return 0
}

// ToReferenceOf applies c.ToReference to an arbitrary magnitude.
func ToReferenceOf[M Magnitude[M]](c Converter, m M) M {
	out := m.Scaled(c.Scale())
	if off := c.Offset(); off != 0 {
		out = out.Shifted(off)
	}
	return out
}

// FromReferenceOf applies c.FromReference to an arbitrary magnitude.
func FromReferenceOf[M Magnitude[M]](c Converter, m M) M {
	out := m
	if off := c.Offset(); off != 0 {
		out = out.Shifted(-off)
	}
	return out.Scaled(1 / c.Scale())
}
