package registry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapunits/pkg/units"
)

func TestConvert(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name  string
		value float64
		src   string
		dst   string
		want  float64
	}{
		{"meter to kilometer", 1000, "meter", "kilometer", 1},
		{"same units", 42, "meter", "m", 42},
		{"inch to centimeter", 1, "inch", "centimeter", 2.54},
		{"mile to kilometer", 1, "mile", "km", 1.609344},
		{"hour to seconds", 1, "hour", "seconds", 3600},
		{"km/h to m/s", 36, "km / h", "m / s", 10},
		{"kilowatt hour to joule", 1, "kWh", "J", 3.6e6},
		{"degree to radian", 180, "degree", "radian", math.Pi},
		{"atmosphere to pascal", 1, "atm", "Pa", 101325},
		{"percent to dimensionless", 50, "%", "", 0.5},
		{"kibibyte to bit", 1, "KiB", "bit", 8192},
		{"square feet to square meters", 1, "square foot", "m**2", 0.09290304},
		{"liter to cubic centimeter", 1, "L", "cm ** 3", 1000},
		{"pound force to newton", 1, "lbf", "N", 4.4482216152605},
		{"celsius to kelvin", 0, "degC", "kelvin", 273.15},
		{"kelvin to celsius", 0, "kelvin", "degC", -273.15},
		{"celsius to fahrenheit", 100, "degC", "degF", 212},
		{"fahrenheit to celsius", 32, "degF", "degC", 0},
		{"rankine to kelvin", 9, "degR", "K", 5},
		{"delta celsius to delta fahrenheit", 10, "delta_degC", "delta_degF", 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Convert(tt.value, tt.src, tt.dst)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9*math.Max(1, math.Abs(tt.want)))
		})
	}
}

func TestConvert_OffsetRoundTrip(t *testing.T) {
	r := newTestRegistry(t)

	for _, x := range []float64{-40, 0, 21.5, 273.15, 1e4} {
		c, err := r.Convert(x, "kelvin", "degC")
		require.NoError(t, err)
		back, err := r.Convert(c, "degC", "kelvin")
		require.NoError(t, err)
		assert.InDelta(t, x, back, 1e-9)

		f, err := r.Convert(x, "degF", "degC")
		require.NoError(t, err)
		back, err = r.Convert(f, "degC", "degF")
		require.NoError(t, err)
		assert.InDelta(t, x, back, 1e-9)
	}
}

func TestConvert_Errors(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("dimensionality", func(t *testing.T) {
		_, err := r.Convert(1, "meter", "second")
		var dimErr *units.DimensionalityError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, "meter", dimErr.Units1)
		assert.Equal(t, "second", dimErr.Units2)
		assert.Equal(t, "[length]", dimErr.Dim1)
		assert.Equal(t, "[time]", dimErr.Dim2)
	})

	offsetCases := []struct {
		name string
		src  string
		dst  string
	}{
		{"offset unit times another unit", "degC * meter", "kelvin * meter"},
		{"offset unit squared", "degC ** 2", "kelvin ** 2"},
		{"two offset units", "degC * degF", "kelvin ** 2"},
		{"offset unit in the destination", "kelvin / meter", "degC / meter"},
	}
	for _, tt := range offsetCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Convert(1, tt.src, tt.dst)
			var offErr *units.OffsetUnitCalculusError
			require.ErrorAs(t, err, &offErr)
		})
	}

	t.Run("undefined units are collected", func(t *testing.T) {
		_, err := r.Convert(1, "furlong / fortnight", "m / s")
		var undef *units.UndefinedUnitError
		require.ErrorAs(t, err, &undef)
		assert.ElementsMatch(t, []string{"furlong", "fortnight"}, undef.UnitNames)
	})

	t.Run("scaled units expression", func(t *testing.T) {
		_, err := r.Convert(1, "2 * meter", "m")
		assert.ErrorIs(t, err, ErrScaledUnits)
	})
}

func TestConvert_AutoconvertOffset(t *testing.T) {
	r := newTestRegistry(t, WithAutoconvertOffsetToBaseUnit(true))

	got, err := r.Convert(10, "degC * meter", "kelvin * meter")
	require.NoError(t, err)
	assert.InDelta(t, 283.15, got, 1e-9)

	_, err = r.Convert(10, "degC ** 2", "kelvin ** 2")
	var offErr *units.OffsetUnitCalculusError
	assert.ErrorAs(t, err, &offErr)
}

func TestConvert_DefaultAsDelta(t *testing.T) {
	r := newTestRegistry(t, WithDefaultAsDelta(true))

	c, err := r.ParseUnits("degC / meter")
	require.NoError(t, err)
	assert.True(t, c.Equal(units.NewContainer(map[string]float64{"delta_degree_Celsius": 1, "meter": -1})))

	c, err = r.ParseUnits("degC")
	require.NoError(t, err)
	assert.True(t, c.Equal(units.Unit("degree_Celsius")), "a lone offset unit stays absolute")

	got, err := r.Convert(2, "degC / meter", "kelvin / cm")
	require.NoError(t, err)
	assert.InDelta(t, 0.02, got, 1e-12)
}

func TestConvertMagnitude(t *testing.T) {
	r := newTestRegistry(t)

	got, err := ConvertMagnitude(r, units.Float(0), "degC", "degF")
	require.NoError(t, err)
	assert.InDelta(t, 32, float64(got), 1e-9)

	got, err = ConvertMagnitude(r, units.Float(2.5), "km", "m")
	require.NoError(t, err)
	assert.InDelta(t, 2500, float64(got), 1e-9)

	_, err = ConvertMagnitude(r, units.Float(1), "m", "s")
	var dimErr *units.DimensionalityError
	assert.ErrorAs(t, err, &dimErr)

	require.NoError(t, r.EnableContexts(nil, "sp"))
	_, err = ConvertMagnitude(r, units.Float(1), "nm", "THz")
	assert.ErrorIs(t, err, ErrContextMagnitude)
}

func TestGetDimensionality(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		input string
		want  map[string]float64
	}{
		{"meter", map[string]float64{"[length]": 1}},
		{"km / h", map[string]float64{"[length]": 1, "[time]": -1}},
		{"[speed]", map[string]float64{"[length]": 1, "[time]": -1}},
		{"newton", map[string]float64{"[mass]": 1, "[length]": 1, "[time]": -2}},
		{"[pressure]", map[string]float64{"[mass]": 1, "[length]": -1, "[time]": -2}},
		{"V", map[string]float64{"[mass]": 1, "[length]": 2, "[time]": -3, "[current]": -1}},
		{"radian", nil},
		{"percent", nil},
		{"degC", map[string]float64{"[temperature]": 1}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.GetDimensionality(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(units.NewContainer(tt.want)), "got %s", got)
		})
	}

	_, err := r.GetDimensionality("[nothing]")
	var undef *units.UndefinedUnitError
	assert.ErrorAs(t, err, &undef)
}

func TestGetRootUnits(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		input      string
		wantFactor float64
		wantUnits  map[string]float64
	}{
		{"km", 1000, map[string]float64{"meter": 1}},
		{"newton", 1000, map[string]float64{"gram": 1, "meter": 1, "second": -2}},
		{"kWh", 3.6e9, map[string]float64{"gram": 1, "meter": 2, "second": -2}},
		{"turn", 2 * math.Pi, map[string]float64{"radian": 1}},
		{"delta_degC", 1, map[string]float64{"kelvin": 1}},
		{"dimensionless", 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			factor, got, err := r.GetBaseUnits(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantFactor, factor, 1e-9*tt.wantFactor)
			assert.True(t, got.Equal(units.NewContainer(tt.wantUnits)), "got %s", got)
		})
	}

	_, _, err := r.GetRootUnits("degC")
	var offErr *units.OffsetUnitCalculusError
	require.ErrorAs(t, err, &offErr)
	assert.Equal(t, "degree_Celsius", offErr.Units1)
}

func TestGetCompatibleUnits(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.GetCompatibleUnits("km")
	require.NoError(t, err)
	assert.Contains(t, got, "meter")
	assert.Contains(t, got, "foot")
	assert.Contains(t, got, "parsec")
	assert.NotContains(t, got, "hertz")

	require.NoError(t, r.EnableContexts(nil, "spectroscopy"))
	got, err = r.GetCompatibleUnits("km")
	require.NoError(t, err)
	assert.Contains(t, got, "hertz")
	assert.Contains(t, got, "kayser")
	assert.Contains(t, got, "joule")
}

func TestParseExpression(t *testing.T) {
	r := newTestRegistry(t)

	q, err := r.ParseExpression("2.5 km / h")
	require.NoError(t, err)
	assert.Equal(t, 2.5, q.Magnitude)
	assert.True(t, q.Units.Equal(units.NewContainer(map[string]float64{"kilometer": 1, "hour": -1})))

	q, err = r.ParseExpressionWith("x * meter", map[string]float64{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, q.Magnitude)
	assert.True(t, q.Units.Equal(units.Unit("meter")))

	_, err = r.ParseExpression("3 furlongs")
	var undef *units.UndefinedUnitError
	assert.ErrorAs(t, err, &undef)
}
