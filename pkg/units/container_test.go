package units

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_Algebra(t *testing.T) {
	meter := Unit("meter")
	second := Unit("second")

	speed := meter.Div(second)
	assert.Equal(t, 2, speed.Len())
	exp, ok := speed.Get("second")
	require.True(t, ok)
	assert.Equal(t, -1.0, exp)

	accel := speed.Div(second)
	exp, _ = accel.Get("second")
	assert.Equal(t, -2.0, exp)

	assert.True(t, accel.Mul(second).Equal(speed))
	assert.True(t, speed.Div(speed).IsEmpty())
	assert.True(t, speed.Pow(0).IsEmpty())

	area := meter.Pow(2)
	exp, _ = area.Get("meter")
	assert.Equal(t, 2.0, exp)
	assert.True(t, area.Pow(0.5).Equal(meter))
}

func TestContainer_InverseLaw(t *testing.T) {
	cases := []struct {
		name string
		a, b Container
	}{
		{"disjoint", NewContainer(map[string]float64{"meter": 1}), NewContainer(map[string]float64{"second": -2})},
		{"overlap", NewContainer(map[string]float64{"meter": 1, "gram": 3}), NewContainer(map[string]float64{"meter": 2})},
		{"empty", Dimensionless, NewContainer(map[string]float64{"kelvin": 1})},
		{"fractional", NewContainer(map[string]float64{"meter": 0.5}), NewContainer(map[string]float64{"meter": 1.5})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.a.Mul(tc.b).Div(tc.b).Equal(tc.a))
		})
	}
}

func TestContainer_Immutable(t *testing.T) {
	a := Unit("meter")
	b := a.Add("second", -1)
	_ = a.Mul(Unit("gram"))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestContainer_EqualIgnoresOrder(t *testing.T) {
	a := Unit("meter").Add("second", -1)
	b := Unit("second").Pow(-1).Add("meter", 1)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, []string{"meter", "second"}, a.Keys())
	assert.Equal(t, []string{"second", "meter"}, b.Keys())
}

func TestContainer_IsDimensional(t *testing.T) {
	assert.True(t, NewContainer(map[string]float64{"[length]": 1, "[time]": -1}).IsDimensional())
	assert.False(t, NewContainer(map[string]float64{"[length]": 1, "second": -1}).IsDimensional())
	assert.True(t, Dimensionless.IsDimensional())
}

func TestContainer_String(t *testing.T) {
	tests := []struct {
		name     string
		c        Container
		expected string
	}{
		{"empty", Dimensionless, "dimensionless"},
		{"single", Unit("meter"), "meter"},
		{"ratio", Unit("meter").Add("second", -2), "meter / second ** 2"},
		{"inverse", Unit("second").Inv(), "1 / second"},
		{"product", Unit("kilogram").Add("meter", 2).Add("second", -2), "kilogram * meter ** 2 / second ** 2"},
		{"fraction", Unit("meter").Pow(0.5), "meter ** 0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.c.String())
		})
	}
}

func TestContainer_RemoveRename(t *testing.T) {
	c := Unit("degC").Add("meter", 1)

	assert.True(t, c.Remove("degC").Equal(Unit("meter")))
	renamed := c.Rename("degC", "kelvin")
	assert.Equal(t, []string{"kelvin", "meter"}, renamed.Keys())
	assert.True(t, Unit("meter").Rename("meter", "meter").Equal(Unit("meter")))
}

func TestContainer_Single(t *testing.T) {
	name, ok := Unit("meter").Single()
	assert.True(t, ok)
	assert.Equal(t, "meter", name)

	_, ok = Unit("meter").Pow(2).Single()
	assert.False(t, ok)
}

func TestContainer_JSON(t *testing.T) {
	c := Unit("meter").Add("second", -2)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"meter":1,"second":-2}`, string(data))

	var back Container
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(c))
	assert.Equal(t, c.Keys(), back.Keys())

	require.Error(t, json.Unmarshal([]byte(`[1]`), &back))
}
