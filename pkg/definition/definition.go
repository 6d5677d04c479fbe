// Package definition models the entries of a units definitions file:
// prefixes, units, dimensions and alias lines.
package definition

import (
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Kind identifies the variant of a Definition.
type Kind int

const (
	KindPrefix Kind = iota
	KindUnit
	KindDimension
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindPrefix:
		return "prefix"
	case KindUnit:
		return "unit"
	case KindDimension:
		return "dimension"
	case KindAlias:
		return "alias"
	}
	return "unknown"
}

// Definition is one parsed definition line.
type Definition interface {
	Kind() Kind
	// Name is the canonical name. For alias lines it is the target name.
	Name() string
	// Symbol returns the symbol, or the name when there is none.
	Symbol() string
	HasSymbol() bool
	Aliases() []string
	// AddAliases appends aliases that are not present yet.
	AddAliases(aliases ...string)
	// Converter is nil for dimensions and alias lines.
	Converter() units.Converter
	// String reconstructs a definition line that parses back to an
	// equivalent definition.
	String() string
	// Equal reports content equality.
	Equal(other Definition) bool
}

// base holds the fields shared by every variant.
type base struct {
	name      string
	symbol    string
	aliases   []string
	converter units.Converter
}

func (b *base) Name() string { return b.name }

func (b *base) Symbol() string {
	if b.symbol != "" {
		return b.symbol
	}
	return b.name
}

func (b *base) HasSymbol() bool { return b.symbol != "" }

func (b *base) Aliases() []string { return slices.Clone(b.aliases) }

func (b *base) AddAliases(aliases ...string) {
	for _, a := range aliases {
		if a != "" && !slices.Contains(b.aliases, a) {
			b.aliases = append(b.aliases, a)
		}
	}
}

func (b *base) Converter() units.Converter { return b.converter }

// IsMultiplicative reports whether the converter has no offset.
func (b *base) IsMultiplicative() bool {
	return b.converter == nil || b.converter.IsMultiplicative()
}

func (b *base) sameBase(o *base) bool {
	return b.name == o.name &&
		b.symbol == o.symbol &&
		slices.Equal(b.aliases, o.aliases) &&
		units.EqualConverters(b.converter, o.converter)
}

// tail renders " = symbol = alias1 = alias2".
func (b *base) tail() string {
	if b.symbol == "" && len(b.aliases) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(" = ")
	if b.symbol == "" {
		sb.WriteString("_")
	} else {
		sb.WriteString(b.symbol)
	}
	for _, a := range b.aliases {
		sb.WriteString(" = ")
		sb.WriteString(a)
	}
	return sb.String()
}

// Prefix is a scale applied to unit names, such as kilo- = 1000.
type Prefix struct {
	base
}

// NewPrefix creates a prefix definition. Trailing '-' markers are removed.
func NewPrefix(name, symbol string, aliases []string, scale float64) *Prefix {
	stripped := make([]string, 0, len(aliases))
	for _, a := range aliases {
		stripped = append(stripped, strings.Trim(a, "-"))
	}
	return &Prefix{base{
		name:      strings.TrimRight(name, "-"),
		symbol:    strings.Trim(symbol, "-"),
		aliases:   stripped,
		converter: units.ScaleConverter{Factor: scale},
	}}
}

func (p *Prefix) Kind() Kind { return KindPrefix }

func (p *Prefix) String() string {
	return p.name + "- = " + formatFloat(p.converter.Scale()) + p.tail()
}

func (p *Prefix) Equal(other Definition) bool {
	o, ok := other.(*Prefix)
	return ok && p.sameBase(&o.base)
}

// Unit is a named unit defined relative to other units or to dimensions.
type Unit struct {
	base
	reference units.Container
	isBase    bool
}

// NewUnit creates a unit definition.
func NewUnit(name, symbol string, aliases []string, converter units.Converter, reference units.Container, isBase bool) *Unit {
	return &Unit{
		base:      base{name: name, symbol: symbol, aliases: slices.Clone(aliases), converter: converter},
		reference: reference,
		isBase:    isBase,
	}
}

func (u *Unit) Kind() Kind { return KindUnit }

// Reference is the container the unit is expressed in.
func (u *Unit) Reference() units.Container { return u.reference }

// IsBase reports whether the unit is referenced to dimensions only.
func (u *Unit) IsBase() bool { return u.isBase }

func (u *Unit) String() string {
	if u.isBase && u.reference.IsEmpty() {
		return u.name + " =" + u.tail()
	}
	value := formatValue(u.converter.Scale(), u.reference)
	if off := u.converter.Offset(); off != 0 {
		value += "; offset: " + formatFloat(off)
	}
	return u.name + " = " + value + u.tail()
}

func (u *Unit) Equal(other Definition) bool {
	o, ok := other.(*Unit)
	return ok && u.sameBase(&o.base) && u.isBase == o.isBase && u.reference.Equal(o.reference)
}

// Dimension is a bracketed physical kind such as [length].
type Dimension struct {
	base
	reference units.Container
	isBase    bool
}

// NewDimension creates a dimension definition. A dimension without a
// reference is a base dimension.
func NewDimension(name string, reference units.Container) *Dimension {
	return &Dimension{
		base:      base{name: name},
		reference: reference,
		isBase:    reference.IsEmpty(),
	}
}

func (d *Dimension) Kind() Kind { return KindDimension }

// Reference is the container of dimensions this one derives from.
func (d *Dimension) Reference() units.Container { return d.reference }

// IsBase reports whether the dimension has no reference.
func (d *Dimension) IsBase() bool { return d.isBase }

func (d *Dimension) String() string {
	if d.isBase {
		return d.name + " =" + d.tail()
	}
	return d.name + " = " + d.reference.String() + d.tail()
}

func (d *Dimension) Equal(other Definition) bool {
	o, ok := other.(*Dimension)
	return ok && d.sameBase(&o.base) && d.reference.Equal(o.reference)
}

// Alias adds aliases to an existing unit, prefix or dimension.
type Alias struct {
	base
}

// NewAlias creates an alias line for target.
func NewAlias(target string, aliases ...string) *Alias {
	a := &Alias{base{name: target}}
	a.AddAliases(aliases...)
	return a
}

func (a *Alias) Kind() Kind { return KindAlias }

func (a *Alias) String() string {
	return "@alias " + a.name + " = " + strings.Join(a.aliases, " = ")
}

func (a *Alias) Equal(other Definition) bool {
	o, ok := other.(*Alias)
	return ok && a.sameBase(&o.base)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatValue renders scale and reference as a parseable expression.
func formatValue(scale float64, reference units.Container) string {
	switch {
	case reference.IsEmpty():
		return formatFloat(scale)
	case scale == 1:
		return reference.String()
	}
	return formatFloat(scale) + " * " + reference.String()
}
