package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alert-systemv1/internal/model"
)

// CreateAlert validates a, assigns an ID and CreatedAt when missing, and
// saves it. Returns the stored alert.
func (s *Store) CreateAlert(ctx context.Context, a model.AlertSpec) (model.AlertSpec, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := a.Validate(); err != nil {
		return model.AlertSpec{}, err
	}
	if err := s.SaveAlert(ctx, a); err != nil {
		return model.AlertSpec{}, err
	}
	return a, nil
}

// SaveAlert inserts or replaces an alert by ID.
func (s *Store) SaveAlert(ctx context.Context, a model.AlertSpec) error {
	if a.ID == "" {
		return fmt.Errorf("sqlite save alert: empty id: %w", model.ErrMalformedSpec)
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", a.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alerts (id, symbol, active, created_at, data)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.Symbol, boolInt(a.Active), a.CreatedAt.UnixMilli(), string(data))
	if err != nil {
		return fmt.Errorf("sqlite save alert %s: %w", a.ID, err)
	}
	return nil
}

// GetAlerts returns all alerts, or only those for symbol when it is non-empty,
// oldest first.
func (s *Store) GetAlerts(ctx context.Context, symbol string) ([]model.AlertSpec, error) {
	q := `SELECT data FROM alerts`
	var args []interface{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertSpec
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan alerts: %w", err)
		}
		var a model.AlertSpec
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("unmarshal alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RemoveAlert deletes an alert. Removing an unknown id is not an error.
func (s *Store) RemoveAlert(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite remove alert %s: %w", id, err)
	}
	return nil
}

// AddAlertHistory appends a record and prunes to the newest model.MaxHistory
// in one transaction.
func (s *Store) AddAlertHistory(ctx context.Context, rec model.HistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alert_history (alert_id, symbol, message, target, price, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.AlertID, rec.Symbol, rec.Message, rec.Target, rec.Price, rec.Timestamp.UnixMilli())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM alert_history
		WHERE id NOT IN (SELECT id FROM alert_history ORDER BY id DESC LIMIT ?)
	`, model.MaxHistory)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prune history: %w", err)
	}

	return tx.Commit()
}

// GetAlertHistory returns history records, newest first.
func (s *Store) GetAlertHistory(ctx context.Context) ([]model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alert_id, symbol, message, target, price, ts
		FROM alert_history
		ORDER BY id DESC
		LIMIT ?
	`, model.MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("sqlite query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var (
			rec model.HistoryRecord
			ts  int64
		)
		if err := rows.Scan(&rec.AlertID, &rec.Symbol, &rec.Message, &rec.Target, &rec.Price, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan history: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
