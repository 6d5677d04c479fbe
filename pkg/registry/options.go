package registry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// RedefinitionPolicy selects what Define does when a name, symbol or alias
// is already taken by a different definition.
type RedefinitionPolicy int

const (
	// Raise fails with a RedefinitionError.
	Raise RedefinitionPolicy = iota
	// Warn logs the collision and replaces the previous entry.
	Warn
	// Ignore silently replaces the previous entry.
	Ignore
)

func (p RedefinitionPolicy) String() string {
	switch p {
	case Raise:
		return "raise"
	case Warn:
		return "warn"
	case Ignore:
		return "ignore"
	}
	return "unknown"
}

// ParseRedefinitionPolicy reads "raise", "warn" or "ignore".
func ParseRedefinitionPolicy(s string) (RedefinitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raise":
		return Raise, nil
	case "warn":
		return Warn, nil
	case "ignore":
		return Ignore, nil
	}
	return Raise, fmt.Errorf("invalid redefinition policy %q (want raise, warn or ignore)", s)
}

// source is an extra definitions input loaded after the defaults.
type source struct {
	path   string
	name   string
	reader io.Reader
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefinitionsFile loads path after the default definitions.
func WithDefinitionsFile(path string) Option {
	return func(r *Registry) {
		r.sources = append(r.sources, source{path: path})
	}
}

// WithDefinitionsReader loads definitions from rd. name is used in error
// messages and as the base for relative @import paths.
func WithDefinitionsReader(name string, rd io.Reader) Option {
	return func(r *Registry) {
		r.sources = append(r.sources, source{name: name, reader: rd})
	}
}

// WithoutDefaults skips the embedded default definitions.
func WithoutDefaults() Option {
	return func(r *Registry) {
		r.withoutDefaults = true
	}
}

// WithOnRedefinition sets the redefinition policy. The default is Raise.
func WithOnRedefinition(p RedefinitionPolicy) Option {
	return func(r *Registry) {
		r.onRedefinition = p
	}
}

// WithDefaultAsDelta makes ParseUnits read offset units as their delta_
// counterparts whenever they appear with other units or an exponent other
// than 1.
func WithDefaultAsDelta(enabled bool) Option {
	return func(r *Registry) {
		r.defaultAsDelta = enabled
	}
}

// WithAutoconvertOffsetToBaseUnit allows a single offset unit next to other
// units in a conversion; it is converted to its reference first.
func WithAutoconvertOffsetToBaseUnit(enabled bool) Option {
	return func(r *Registry) {
		r.autoconvertOffset = enabled
	}
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPreprocessors registers string rewrites applied to every expression
// before it is parsed.
func WithPreprocessors(fns ...func(string) string) Option {
	return func(r *Registry) {
		r.preprocessors = append(r.preprocessors, fns...)
	}
}
