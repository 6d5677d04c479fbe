package units

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"syntax plain", &DefinitionSyntaxError{Msg: "foo"}, "foo"},
		{"syntax file and line", &DefinitionSyntaxError{Msg: "foo", Filename: "a.txt", Lineno: 123}, "While opening a.txt, in line 123: foo"},
		{"syntax line", &DefinitionSyntaxError{Msg: "foo", Lineno: 123}, "In line 123: foo"},
		{"syntax file", &DefinitionSyntaxError{Msg: "foo", Filename: "a.txt"}, "While opening a.txt: foo"},
		{"redefinition", &RedefinitionError{Name: "foo", DefinitionType: "bar"}, "Cannot redefine 'foo' (bar)"},
		{"redefinition located", &RedefinitionError{Name: "foo", DefinitionType: "bar", Filename: "a.txt", Lineno: 2}, "While opening a.txt, in line 2: Cannot redefine 'foo' (bar)"},
		{"undefined single", NewUndefinedUnitError("meter"), "'meter' is not defined in the unit registry"},
		{"undefined many", NewUndefinedUnitError("meter", "kg"), "('meter', 'kg') are not defined in the unit registry"},
		{"dimensionality", &DimensionalityError{Units1: "a", Units2: "b"}, "Cannot convert from 'a' to 'b'"},
		{"dimensionality dims", &DimensionalityError{Units1: "a", Units2: "b", Dim1: "c"}, "Cannot convert from 'a' (c) to 'b' ()"},
		{"dimensionality extra", &DimensionalityError{Units1: "a", Units2: "b", Dim1: "c", Dim2: "d", ExtraMsg: "msg"}, "Cannot convert from 'a' (c) to 'b' (d): msg"},
		{"offset", &OffsetUnitCalculusError{Units1: "kilogram", Units2: "second"}, "Ambiguous operation with offset unit (kilogram, second)."},
		{"offset single", &OffsetUnitCalculusError{Units1: "degC"}, "Ambiguous operation with offset unit (degC)."},
		{"stripped", &UnitStrippedWarning{Msg: "units dropped"}, "units dropped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSetLocation_KeepsExisting(t *testing.T) {
	err := &DefinitionSyntaxError{Msg: "bad", Lineno: 4}
	err.SetLocation("defs.txt", 10)

	assert.Equal(t, "defs.txt", err.Filename)
	assert.Equal(t, 4, err.Lineno)

	var loc Locatable = &RedefinitionError{Name: "x", DefinitionType: "unit"}
	loc.SetLocation("defs.txt", 7)
	assert.Equal(t, "While opening defs.txt, in line 7: Cannot redefine 'x' (unit)", loc.Error())
}

func TestErrorSerializationRoundTrip(t *testing.T) {
	located := &DefinitionSyntaxError{Msg: "foo"}
	located.SetLocation("a.txt", 123)

	errs := []error{
		located,
		&RedefinitionError{Name: "foo", DefinitionType: "bar", Filename: "b.txt", Lineno: 1},
		NewUndefinedUnitError("meter", "kg"),
		&DimensionalityError{Units1: "a", Units2: "b", Dim1: "c", Dim2: "d", ExtraMsg: "msg"},
		&OffsetUnitCalculusError{Units1: "kilogram", Units2: "second"},
		&UnitStrippedWarning{Msg: "stripped"},
	}

	for _, original := range errs {
		t.Run(original.Error(), func(t *testing.T) {
			data, err := MarshalError(original)
			require.NoError(t, err)

			restored, err := UnmarshalError(data)
			require.NoError(t, err)
			assert.IsType(t, original, restored)
			assert.Equal(t, original, restored)
			assert.Equal(t, original.Error(), restored.Error())
		})
	}
}

func TestErrorSerialization_Rejects(t *testing.T) {
	_, err := MarshalError(errors.New("plain"))
	require.Error(t, err)

	_, err = UnmarshalError([]byte(`{"kind":"Nope","fields":{}}`))
	require.Error(t, err)

	_, err = UnmarshalError([]byte(`not json`))
	require.Error(t, err)
}

func TestErrorsAs(t *testing.T) {
	var wrapped error = &DimensionalityError{Units1: "meter", Units2: "second"}
	wrapped = errors.Join(errors.New("context"), wrapped)

	var dimErr *DimensionalityError
	require.True(t, errors.As(wrapped, &dimErr))
	assert.Equal(t, "meter", dimErr.Units1)
}
