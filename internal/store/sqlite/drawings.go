package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"alert-systemv1/internal/model"
)

// SaveDrawing inserts or replaces a drawing, assigning an ID when missing.
// Returns the stored drawing.
func (s *Store) SaveDrawing(ctx context.Context, d model.DrawingSpec) (model.DrawingSpec, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Symbol == "" {
		return model.DrawingSpec{}, fmt.Errorf("drawing %s: empty symbol: %w", d.ID, model.ErrMalformedSpec)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return model.DrawingSpec{}, fmt.Errorf("marshal drawing %s: %w", d.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drawings (id, symbol, data) VALUES (?, ?, ?)`,
		d.ID, d.Symbol, string(data))
	if err != nil {
		return model.DrawingSpec{}, fmt.Errorf("sqlite save drawing %s: %w", d.ID, err)
	}
	return d, nil
}

// GetDrawings returns the drawings for symbol.
func (s *Store) GetDrawings(ctx context.Context, symbol string) ([]model.DrawingSpec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM drawings WHERE symbol = ? ORDER BY id ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("sqlite query drawings: %w", err)
	}
	defer rows.Close()

	var out []model.DrawingSpec
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan drawings: %w", err)
		}
		var d model.DrawingSpec
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("unmarshal drawing: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RemoveDrawing deletes a drawing. Removing an unknown id is not an error.
func (s *Store) RemoveDrawing(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drawings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite remove drawing %s: %w", id, err)
	}
	return nil
}
