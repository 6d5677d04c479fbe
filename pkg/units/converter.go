package units

import "fmt"

// Converter maps a magnitude expressed in a unit to its reference and back.
type Converter interface {
	Scale() float64
	Offset() float64
	IsMultiplicative() bool
	ToReference(x float64) float64
	FromReference(x float64) float64
}

// NewConverter returns a ScaleConverter when offset is zero and an
// OffsetConverter otherwise.
func NewConverter(scale, offset float64) Converter {
	if offset == 0 {
		return ScaleConverter{Factor: scale}
	}
	return OffsetConverter{Factor: scale, Shift: offset}
}

// ScaleConverter is a pure multiplicative conversion.
type ScaleConverter struct {
	Factor float64
}

func (c ScaleConverter) Scale() float64 { return c.Factor }
func (c ScaleConverter) Offset() float64 { return 0 }
func (c ScaleConverter) IsMultiplicative() bool { return true }
func (c ScaleConverter) ToReference(x float64) float64 { return x * c.Factor }
func (c ScaleConverter) FromReference(x float64) float64 { return x / c.Factor }

func (c ScaleConverter) String() string {
	return fmt.Sprintf("ScaleConverter(scale=%g)", c.Factor)
}

// OffsetConverter is an affine conversion: reference = x*scale + offset.
type OffsetConverter struct {
	Factor float64
	Shift  float64
}

func (c OffsetConverter) Scale() float64 { return c.Factor }
func (c OffsetConverter) Offset() float64 { return c.Shift }
func (c OffsetConverter) IsMultiplicative() bool { return c.Shift == 0 }
func (c OffsetConverter) ToReference(x float64) float64 { return x*c.Factor + c.Shift }
func (c OffsetConverter) FromReference(x float64) float64 { return (x - c.Shift) / c.Factor }

func (c OffsetConverter) String() string {
	return fmt.Sprintf("OffsetConverter(scale=%g, offset=%g)", c.Factor, c.Shift)
}

// EqualConverters reports whether a and b describe the same rule.
func EqualConverters(a, b Converter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Scale() == b.Scale() && a.Offset() == b.Offset()
}
