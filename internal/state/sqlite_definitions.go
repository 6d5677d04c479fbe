package state

import (
	"context"
	"fmt"
	"time"
)

const aliasKind = "alias"

// SaveDefinition stores a user definition.
//
// Alias lines are kept side by side, one row per distinct line. Any other
// kind replaces the line of a previous definition of the same kind and name
// in place, so aliases saved after it are still replayed after it.
func (s *SQLiteStore) SaveDefinition(ctx context.Context, d *Definition) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if d.Kind != aliasKind {
		res, err := tx.ExecContext(ctx,
			`UPDATE definitions SET line = ? WHERE kind = ? AND name = ?`,
			d.Line, d.Kind, d.Name)
		if err != nil {
			return fmt.Errorf("failed to save definition %s: %w", d.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return tx.Commit()
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO definitions (id, name, kind, line, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, name, line) DO NOTHING`,
		d.ID, d.Name, d.Kind, d.Line, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save definition %s: %w", d.Name, err)
	}
	return tx.Commit()
}

// ListDefinitions returns every stored definition in the order it was saved.
func (s *SQLiteStore) ListDefinitions(ctx context.Context) ([]*Definition, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, line, created_at FROM definitions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []*Definition
	for rows.Next() {
		d := &Definition{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Kind, &d.Line, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// DeleteDefinition removes every stored line for name: its definition and
// the aliases saved for it.
func (s *SQLiteStore) DeleteDefinition(ctx context.Context, name string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete definition %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("definition %s: %w", name, ErrNotFound)
	}
	return nil
}
