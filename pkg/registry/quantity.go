package registry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Quantity is a magnitude with units, bound to the registry that resolved
// them.
type Quantity struct {
	Magnitude float64
	Units     units.Container

	reg *Registry
}

// Quantity returns a quantity of r.
func (r *Registry) Quantity(magnitude float64, u units.Container) Quantity {
	return Quantity{Magnitude: magnitude, Units: u, reg: r}
}

// Registry returns the registry q belongs to.
func (q Quantity) Registry() *Registry {
	return q.reg
}

// To converts q to the dst units expression.
func (q Quantity) To(dst string) (Quantity, error) {
	d, err := q.reg.ParseUnits(dst)
	if err != nil {
		return Quantity{}, err
	}
	return q.ToUnits(d)
}

// ToUnits converts q to dst.
func (q Quantity) ToUnits(dst units.Container) (Quantity, error) {
	m, err := q.reg.ConvertUnits(q.Magnitude, q.Units, dst)
	if err != nil {
		return Quantity{}, err
	}
	return q.reg.Quantity(m, dst), nil
}

// Dimensionality returns the base dimensions of q's units.
func (q Quantity) Dimensionality() (units.Container, error) {
	return q.reg.DimensionalityOf(q.Units)
}

// Check reports whether q has the dimensionality of dim, which may be a
// dimension expression such as "[length] / [time]" or a units expression.
func (q Quantity) Check(dim string) (bool, error) {
	want, err := q.reg.GetDimensionality(dim)
	if err != nil {
		return false, err
	}
	got, err := q.Dimensionality()
	if err != nil {
		return false, err
	}
	return got.Equal(want), nil
}

// Strip returns the bare magnitude. Dropping units other than
// dimensionless ones is logged as a UnitStrippedWarning.
func (q Quantity) Strip() float64 {
	if !q.Units.IsEmpty() && q.reg != nil {
		w := &units.UnitStrippedWarning{Msg: fmt.Sprintf("the unit of the quantity (%s) is stripped", q.Units)}
		q.reg.logger.Warn(w.Error(), "magnitude", q.Magnitude, "units", q.Units.String())
	}
	return q.Magnitude
}

func (q Quantity) String() string {
	m := strconv.FormatFloat(q.Magnitude, 'g', -1, 64)
	if q.Units.IsEmpty() {
		return m
	}
	return m + " " + q.Units.String()
}

type quantityJSON struct {
	Magnitude float64         `json:"magnitude"`
	Units     units.Container `json:"units"`
}

// MarshalJSON encodes q as {"magnitude": m, "units": {"name": exp}}.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(quantityJSON{Magnitude: q.Magnitude, Units: q.Units})
}

// UnmarshalQuantity decodes a quantity produced by MarshalJSON, resolving
// its units in the application registry.
func UnmarshalQuantity(data []byte) (Quantity, error) {
	var raw quantityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Quantity{}, fmt.Errorf("failed to decode quantity: %w", err)
	}
	reg, err := Application()
	if err != nil {
		return Quantity{}, err
	}
	u, err := reg.canonical(raw.Units)
	if err != nil {
		return Quantity{}, err
	}
	return reg.Quantity(raw.Magnitude, u), nil
}
