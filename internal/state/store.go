// Package state persists user definitions and conversion history in SQLite.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a stored record does not exist.
var ErrNotFound = errors.New("not found")

// Definition is a user definition line saved for replay into new registries.
type Definition struct {
	ID        string
	Name      string
	Kind      string
	Line      string
	CreatedAt time.Time
}

// Conversion is one entry of the conversion history.
type Conversion struct {
	ID        string    `json:"id" yaml:"id"`
	Magnitude float64   `json:"magnitude" yaml:"magnitude"`
	Src       string    `json:"src" yaml:"src"`
	Dst       string    `json:"dst" yaml:"dst"`
	Result    *float64  `json:"result,omitempty" yaml:"result,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Contexts  []string  `json:"contexts,omitempty" yaml:"contexts,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store is the persistence interface used by the CLI and the HTTP server.
type Store interface {
	SaveDefinition(ctx context.Context, d *Definition) error
	ListDefinitions(ctx context.Context) ([]*Definition, error)
	DeleteDefinition(ctx context.Context, name string) error

	RecordConversion(ctx context.Context, c *Conversion) error
	ListConversions(ctx context.Context, limit int) ([]*Conversion, error)
	ClearConversions(ctx context.Context) (int64, error)

	Close() error
}
