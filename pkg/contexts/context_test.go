package contexts

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	length    = units.Unit("[length]")
	frequency = units.Unit("[frequency]")
	energy    = units.Unit("[energy]")
)

func lines(texts ...string) []Line {
	out := make([]Line, len(texts))
	for i, s := range texts {
		out[i] = Line{Lineno: i + 10, Text: s}
	}
	return out
}

func scaled(x float64) Transformation {
	return func(value parser.Term, _ map[string]float64) (parser.Term, error) {
		return parser.Term{Scale: value.Scale * x, Units: value.Units}, nil
	}
}

func TestContext_Transformations(t *testing.T) {
	ctx := New("sp", []string{"spectroscopy"}, nil)
	ctx.AddTransformation(length, frequency, scaled(2))
	ctx.AddTransformation(frequency, energy, scaled(3))
	ctx.AddTransformation(length, frequency, scaled(4))

	require.Len(t, ctx.Edges(), 2)
	assert.True(t, ctx.HasTransformation(length, frequency))
	assert.False(t, ctx.HasTransformation(frequency, length))

	got, err := ctx.Transform(length, frequency, parser.Number(1))
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Scale)

	ctx.RemoveTransformation(length, frequency)
	assert.False(t, ctx.HasTransformation(length, frequency))
	assert.Len(t, ctx.Edges(), 1)

	_, err = ctx.Transform(length, frequency, parser.Number(1))
	assert.Error(t, err)
}

func TestContext_WithDefaults(t *testing.T) {
	ctx := New("sp", nil, map[string]float64{"n": 1, "m": 2})
	assert.Same(t, ctx, ctx.WithDefaults(nil))

	other := ctx.WithDefaults(map[string]float64{"n": 3})
	assert.Equal(t, map[string]float64{"n": 3, "m": 2}, other.Defaults)
	assert.Equal(t, map[string]float64{"n": 1, "m": 2}, ctx.Defaults)

	ctx.AddTransformation(length, frequency, scaled(1))
	assert.True(t, other.HasTransformation(length, frequency))
}

func TestContext_Normalize(t *testing.T) {
	ctx := New("c", nil, nil)
	ctx.AddTransformation(units.Unit("meter"), units.Unit("hertz"), scaled(1))

	calls := 0
	toBase := func(c units.Container) (units.Container, error) {
		calls++
		switch {
		case c.Has("meter"):
			return length, nil
		default:
			return units.Unit("[time]").Inv(), nil
		}
	}
	require.NoError(t, ctx.Normalize(toBase))
	assert.True(t, ctx.HasTransformation(length, units.Unit("[time]").Inv()))
	assert.Equal(t, 2, calls)

	require.NoError(t, ctx.WithDefaults(map[string]float64{"x": 1}).Normalize(toBase))
	assert.Equal(t, 2, calls)
}

func TestFromLines(t *testing.T) {
	ctx, err := FromLines(lines(
		"@context(n=1, k = 2 ** 2) spectroscopy = sp = spec",
		"  [length] <-> [frequency]: speed_of_light / n / value",
		"",
		"  [frequency] -> [energy]: planck_constant * value * k",
	), nil)
	require.NoError(t, err)

	assert.Equal(t, "spectroscopy", ctx.Name)
	assert.Equal(t, []string{"sp", "spec"}, ctx.Aliases)
	assert.Equal(t, map[string]float64{"n": 1, "k": 4}, ctx.Defaults)
	assert.True(t, ctx.HasTransformation(length, frequency))
	assert.True(t, ctx.HasTransformation(frequency, length))
	assert.True(t, ctx.HasTransformation(frequency, energy))
	assert.False(t, ctx.HasTransformation(energy, frequency))

	got, err := ctx.Transform(length, frequency, parser.Term{Scale: 2, Units: units.Unit("meter")})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Scale, 1e-12)
	assert.True(t, got.Units.Equal(units.Unit("speed_of_light").Add("meter", -1)))

	got, err = ctx.WithDefaults(map[string]float64{"n": 2}).Transform(length, frequency, parser.NameTerm("meter"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Scale, 1e-12)
}

func TestFromLines_Errors(t *testing.T) {
	tests := []struct {
		name    string
		block   []Line
		message string
		lineno  int
	}{
		{"bad header", lines("@context"), "Could not parse the Context header", 10},
		{"bad default", lines("@context(n) sp", "[length] -> [time]: n * value"), "Could not parse the Context header", 10},
		{"no arrow", lines("@context sp", "[length] [time]: value"), "Could not parse Context sp relation", 11},
		{"no equation", lines("@context sp", "[length] -> [time]"), "Could not parse Context sp relation", 11},
		{"bad side", lines("@context sp", "[length] -> * : value"), "Could not parse Context sp relation", 11},
		{"unused parameter", lines("@context(n=1, q=2) sp", "[length] -> [time]: n * value"), "Context parameters [q] not found in any equation", 10},
		{"empty", nil, "empty context block", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLines(tt.block, nil)
			require.Error(t, err)
			var synErr *units.DefinitionSyntaxError
			require.True(t, errors.As(err, &synErr))
			assert.Contains(t, synErr.Msg, tt.message)
			assert.Equal(t, tt.lineno, synErr.Lineno)
		})
	}
}

func TestFromLines_ToBase(t *testing.T) {
	toBase := func(c units.Container) (units.Container, error) {
		if c.Has("[wavenumber]") {
			return length.Inv(), nil
		}
		return c, nil
	}
	ctx, err := FromLines(lines("@context sp", "[wavenumber] <-> [length]: 1 / value"), toBase)
	require.NoError(t, err)
	assert.True(t, ctx.HasTransformation(length.Inv(), length))

	failing := func(units.Container) (units.Container, error) { return units.Container{}, errors.New("boom") }
	_, err = FromLines(lines("@context sp", "[foo] -> [length]: value"), failing)
	assert.ErrorContains(t, err, "Could not parse Context sp relation")
}

func TestChain(t *testing.T) {
	a := New("a", nil, map[string]float64{"n": 1})
	a.AddTransformation(length, frequency, scaled(2))
	a.AddTransformation(frequency, energy, scaled(3))

	b := New("b", nil, map[string]float64{"n": 5})
	b.AddTransformation(length, frequency, scaled(10))

	chain := NewChain()
	assert.Empty(t, chain.Defaults())
	assert.Nil(t, chain.Path(length, energy))

	chain.Push(a, b)
	assert.Equal(t, 2, chain.Len())
	assert.Equal(t, []string{"b", "a"}, chain.Names())
	assert.Equal(t, map[string]float64{"n": 5}, chain.Defaults())

	got, err := chain.Transform(length, frequency, parser.Number(1))
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Scale, "later context wins")

	path := chain.Path(length, energy)
	require.Len(t, path, 3)
	assert.True(t, path[1].Equal(frequency))

	reach := chain.Reachable(length)
	assert.Len(t, reach, 3)
	assert.Nil(t, chain.Path(energy, length))

	chain.Pop(1)
	got, err = chain.Transform(length, frequency, parser.Number(1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Scale)

	chain.Pop(0)
	assert.Equal(t, 0, chain.Len())
	_, err = chain.Transform(length, frequency, parser.Number(1))
	assert.Error(t, err)
}
