package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapunits/pkg/contexts"
	"github.com/leapstack-labs/leapunits/pkg/parser"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

func TestContexts_Spectroscopy(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Convert(500, "nm", "THz")
	var dimErr *units.DimensionalityError
	require.ErrorAs(t, err, &dimErr)

	require.NoError(t, r.EnableContexts(nil, "sp"))
	assert.Equal(t, []string{"spectroscopy"}, r.ActiveContexts())

	tests := []struct {
		name  string
		value float64
		src   string
		dst   string
		want  float64
		delta float64
	}{
		{"wavelength to frequency", 500, "nm", "THz", 599.584916, 1e-6},
		{"frequency to wavelength", 599.584916, "THz", "nm", 500, 1e-6},
		{"frequency to energy", 1, "THz", "J", 6.62607015e-22, 1e-30},
		{"wavelength to energy", 500, "nm", "eV", 2.4796839, 1e-6},
		{"wavenumber to wavelength", 1, "1 / cm", "cm", 1, 1e-12},
		{"plain conversion still works", 1, "km", "m", 1000, 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Convert(tt.value, tt.src, tt.dst)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}

	r.DisableContexts(0)
	assert.Empty(t, r.ActiveContexts())
	_, err = r.Convert(500, "nm", "THz")
	require.ErrorAs(t, err, &dimErr)
}

func TestContexts_Parameters(t *testing.T) {
	r := newTestRegistry(t)

	err := r.WithContext([]string{"sp"}, map[string]float64{"n": 2}, func() error {
		got, err := r.Convert(500, "nm", "THz")
		require.NoError(t, err)
		assert.InDelta(t, 299.792458, got, 1e-6)

		// pushing the top context again inherits its parameters
		require.NoError(t, r.EnableContexts(nil))
		got, err = r.Convert(500, "nm", "THz")
		require.NoError(t, err)
		assert.InDelta(t, 299.792458, got, 1e-6)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, r.ActiveContexts())

	require.NoError(t, r.EnableContexts(nil, "sp"))
	got, err := r.Convert(500, "nm", "THz")
	require.NoError(t, err)
	assert.InDelta(t, 599.584916, got, 1e-6)
}

func TestContexts_WithContextReturnsError(t *testing.T) {
	r := newTestRegistry(t)
	boom := errors.New("boom")

	err := r.WithContext([]string{"sp"}, nil, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.ActiveContexts())

	err = r.WithContext([]string{"nope"}, nil, func() error { return nil })
	assert.ErrorIs(t, err, ErrUnknownContext)

	assert.Error(t, r.EnableContexts(nil))
}

func TestContexts_Precedence(t *testing.T) {
	r := newEmptyRegistry(t)
	require.NoError(t, r.DefineString("meter = [length]\nsecond = [time]"))

	newCtx := func(name string, factor float64) *contexts.Context {
		ctx := contexts.New(name, nil, nil)
		ctx.AddTransformation(units.Unit("[length]"), units.Unit("[time]"),
			func(v parser.Term, _ map[string]float64) (parser.Term, error) {
				return v.Mul(parser.Number(factor)).Div(parser.NameTerm("meter")).Mul(parser.NameTerm("second")), nil
			})
		return ctx
	}
	require.NoError(t, r.AddContext(newCtx("first", 2)))
	require.NoError(t, r.AddContext(newCtx("second", 3)))
	assert.Equal(t, []string{"first", "second"}, r.Contexts())

	require.NoError(t, r.EnableContexts(nil, "first", "second"))
	got, err := r.Convert(1, "meter", "second")
	require.NoError(t, err)
	assert.InDelta(t, 3, got, 1e-12)

	r.DisableContexts(1)
	got, err = r.Convert(1, "meter", "second")
	require.NoError(t, err)
	assert.InDelta(t, 2, got, 1e-12)
}

func TestContexts_AddRemove(t *testing.T) {
	r := newEmptyRegistry(t)

	assert.Error(t, r.AddContext(contexts.New("", nil, nil)))

	ctx := contexts.New("optics", []string{"op"}, nil)
	require.NoError(t, r.AddContext(ctx))

	got, ok := r.Context("op")
	require.True(t, ok)
	assert.Same(t, ctx, got)

	removed, err := r.RemoveContext("op")
	require.NoError(t, err)
	assert.Same(t, ctx, removed)
	_, ok = r.Context("optics")
	assert.False(t, ok)

	_, err = r.RemoveContext("optics")
	assert.ErrorIs(t, err, ErrUnknownContext)
}
