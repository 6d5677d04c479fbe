package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RecordConversion appends a conversion to the history.
func (s *SQLiteStore) RecordConversion(ctx context.Context, c *Conversion) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if c.ID == "" {
		c.ID = generateID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	contexts := c.Contexts
	if contexts == nil {
		contexts = []string{}
	}
	contextsJSON, err := json.Marshal(contexts)
	if err != nil {
		return err
	}

	var result sql.NullFloat64
	if c.Result != nil {
		result = sql.NullFloat64{Float64: *c.Result, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversions (id, magnitude, src, dst, result, error, contexts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Magnitude, c.Src, c.Dst, result, nullString(c.Error), string(contextsJSON), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}
	return nil
}

// ListConversions returns the most recent conversions, newest first.
// A limit of zero or less returns the whole history.
func (s *SQLiteStore) ListConversions(ctx context.Context, limit int) ([]*Conversion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, magnitude, src, dst, result, error, contexts, created_at
		FROM conversions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Conversion
	for rows.Next() {
		c := &Conversion{}
		var result sql.NullFloat64
		var errMsg sql.NullString
		var contextsJSON string
		if err := rows.Scan(&c.ID, &c.Magnitude, &c.Src, &c.Dst, &result, &errMsg, &contextsJSON, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		if result.Valid {
			v := result.Float64
			c.Result = &v
		}
		c.Error = errMsg.String
		if err := json.Unmarshal([]byte(contextsJSON), &c.Contexts); err != nil {
			return nil, fmt.Errorf("failed to decode contexts of %s: %w", c.ID, err)
		}
		if len(c.Contexts) == 0 {
			c.Contexts = nil
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClearConversions deletes the whole history and returns how many entries
// were removed.
func (s *SQLiteStore) ClearConversions(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear conversions: %w", err)
	}
	return res.RowsAffected()
}
