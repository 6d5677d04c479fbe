package units

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Locatable is implemented by errors that can carry the file and line of
// the definition that caused them. The loader attaches the location after
// the error was constructed.
type Locatable interface {
	error
	SetLocation(filename string, lineno int)
}

func locationPrefix(filename string, lineno int) string {
	switch {
	case filename != "" && lineno > 0:
		return fmt.Sprintf("While opening %s, in line %d: ", filename, lineno)
	case filename != "":
		return fmt.Sprintf("While opening %s: ", filename)
	case lineno > 0:
		return fmt.Sprintf("In line %d: ", lineno)
	}
	return ""
}

// DefinitionSyntaxError is raised for a malformed definition line.
type DefinitionSyntaxError struct {
	Msg      string `json:"msg"`
	Filename string `json:"filename,omitempty"`
	Lineno   int    `json:"lineno,omitempty"`
}

// NewDefinitionSyntaxError creates a DefinitionSyntaxError with a formatted message.
func NewDefinitionSyntaxError(format string, args ...any) *DefinitionSyntaxError {
	return &DefinitionSyntaxError{Msg: fmt.Sprintf(format, args...)}
}

func (e *DefinitionSyntaxError) Error() string {
	return locationPrefix(e.Filename, e.Lineno) + e.Msg
}

// SetLocation fills in the filename and line if they are not known yet.
func (e *DefinitionSyntaxError) SetLocation(filename string, lineno int) {
	if e.Filename == "" {
		e.Filename = filename
	}
	if e.Lineno == 0 {
		e.Lineno = lineno
	}
}

// RedefinitionError is raised when a name, symbol or alias is already taken.
type RedefinitionError struct {
	Name           string `json:"name"`
	DefinitionType string `json:"definition_type"`
	Filename       string `json:"filename,omitempty"`
	Lineno         int    `json:"lineno,omitempty"`
}

func (e *RedefinitionError) Error() string {
	return locationPrefix(e.Filename, e.Lineno) +
		fmt.Sprintf("Cannot redefine '%s' (%s)", e.Name, e.DefinitionType)
}

// SetLocation fills in the filename and line if they are not known yet.
func (e *RedefinitionError) SetLocation(filename string, lineno int) {
	if e.Filename == "" {
		e.Filename = filename
	}
	if e.Lineno == 0 {
		e.Lineno = lineno
	}
}

// UndefinedUnitError is raised when one or more names cannot be resolved.
type UndefinedUnitError struct {
	UnitNames []string `json:"unit_names"`
}

// NewUndefinedUnitError creates an UndefinedUnitError for the given names.
func NewUndefinedUnitError(names ...string) *UndefinedUnitError {
	return &UndefinedUnitError{UnitNames: names}
}

func (e *UndefinedUnitError) Error() string {
	if len(e.UnitNames) == 1 {
		return fmt.Sprintf("'%s' is not defined in the unit registry", e.UnitNames[0])
	}
	quoted := make([]string, len(e.UnitNames))
	for i, n := range e.UnitNames {
		quoted[i] = "'" + n + "'"
	}
	return fmt.Sprintf("(%s) are not defined in the unit registry", strings.Join(quoted, ", "))
}

// DimensionalityError is raised when two unit expressions cannot be converted.
type DimensionalityError struct {
	Units1   string `json:"units1"`
	Units2   string `json:"units2"`
	Dim1     string `json:"dim1,omitempty"`
	Dim2     string `json:"dim2,omitempty"`
	ExtraMsg string `json:"extra_msg,omitempty"`
}

func (e *DimensionalityError) Error() string {
	var dim1, dim2 string
	if e.Dim1 != "" || e.Dim2 != "" {
		dim1 = " (" + e.Dim1 + ")"
		dim2 = " (" + e.Dim2 + ")"
	}
	msg := fmt.Sprintf("Cannot convert from '%s'%s to '%s'%s", e.Units1, dim1, e.Units2, dim2)
	if e.ExtraMsg != "" {
		msg += ": " + e.ExtraMsg
	}
	return msg
}

// OffsetUnitCalculusError is raised when offset units appear where the
// result would be ambiguous.
type OffsetUnitCalculusError struct {
	Units1 string `json:"units1"`
	Units2 string `json:"units2,omitempty"`
}

func (e *OffsetUnitCalculusError) Error() string {
	var parts []string
	for _, u := range []string{e.Units1, e.Units2} {
		if u != "" {
			parts = append(parts, u)
		}
	}
	return fmt.Sprintf("Ambiguous operation with offset unit (%s).", strings.Join(parts, ", "))
}

// UnitStrippedWarning signals that unit information was discarded. It is
// never returned as a failure; registries log it.
type UnitStrippedWarning struct {
	Msg string `json:"msg"`
}

func (e *UnitStrippedWarning) Error() string {
	return e.Msg
}

// envelope is the wire form of a serialized error.
type envelope struct {
	Kind   string          `json:"kind"`
	Fields json.RawMessage `json:"fields"`
}

var errorKinds = map[string]func() error{
	"DefinitionSyntaxError":   func() error { return &DefinitionSyntaxError{} },
	"RedefinitionError":       func() error { return &RedefinitionError{} },
	"UndefinedUnitError":      func() error { return &UndefinedUnitError{} },
	"DimensionalityError":     func() error { return &DimensionalityError{} },
	"OffsetUnitCalculusError": func() error { return &OffsetUnitCalculusError{} },
	"UnitStrippedWarning":     func() error { return &UnitStrippedWarning{} },
}

func kindOf(err error) (string, bool) {
	switch err.(type) {
	case *DefinitionSyntaxError:
		return "DefinitionSyntaxError", true
	case *RedefinitionError:
		return "RedefinitionError", true
	case *UndefinedUnitError:
		return "UndefinedUnitError", true
	case *DimensionalityError:
		return "DimensionalityError", true
	case *OffsetUnitCalculusError:
		return "OffsetUnitCalculusError", true
	case *UnitStrippedWarning:
		return "UnitStrippedWarning", true
	}
	return "", false
}

// MarshalError serializes one of the errors of this package, including any
// location attached after construction.
func MarshalError(err error) ([]byte, error) {
	kind, ok := kindOf(err)
	if !ok {
		return nil, fmt.Errorf("cannot serialize error of type %T", err)
	}
	fields, mErr := json.Marshal(err)
	if mErr != nil {
		return nil, mErr
	}
	return json.Marshal(envelope{Kind: kind, Fields: fields})
}

// UnmarshalError restores an error serialized by MarshalError.
func UnmarshalError(data []byte) (error, error) { //nolint:revive // the first result is the decoded value
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode error envelope: %w", err)
	}
	newErr, ok := errorKinds[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown error kind %q", env.Kind)
	}
	out := newErr()
	if err := json.Unmarshal(env.Fields, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", env.Kind, err)
	}
	return out, nil
}
