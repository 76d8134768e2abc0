package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the evaluation loop from concrete storage
// implementations (SQLite, Redis). Each implementation satisfies one or more.

// AlertStore persists alert specs and their trigger history.
type AlertStore interface {
	// GetAlerts returns all alerts, or only those for symbol when it is non-empty.
	GetAlerts(ctx context.Context, symbol string) ([]AlertSpec, error)

	// SaveAlert inserts or replaces an alert by ID.
	SaveAlert(ctx context.Context, a AlertSpec) error

	// RemoveAlert deletes an alert. Removing an unknown id is not an error.
	RemoveAlert(ctx context.Context, id string) error

	// GetAlertHistory returns history records, newest first.
	GetAlertHistory(ctx context.Context) ([]HistoryRecord, error)

	// AddAlertHistory appends a record, keeping only the newest MaxHistory.
	AddAlertHistory(ctx context.Context, rec HistoryRecord) error
}

// DrawingStore reads chart drawings referenced by drawing alerts.
type DrawingStore interface {
	GetDrawings(ctx context.Context, symbol string) ([]DrawingSpec, error)
}

// SnapshotStore reads and writes indicator engine snapshots as raw JSON.
// Using []byte avoids a model→indicator→model import cycle.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded engine snapshot.
	SaveSnapshotJSON(ctx context.Context, data []byte) error

	// ReadLatestSnapshotJSON loads the most recent snapshot as raw JSON.
	// Returns nil, nil if no snapshot exists.
	ReadLatestSnapshotJSON(ctx context.Context) ([]byte, error)
}
