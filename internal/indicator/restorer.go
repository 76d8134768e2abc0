package indicator

import (
	"context"
	"log"
	"time"

	"alert-systemv1/internal/model"
)

// Restorer rebuilds the indicator engine on startup.
// It follows a priority chain over its sources (Redis, then SQLite), falling
// back to a cold start.
type Restorer struct {
	limit   int
	sources []model.SnapshotStore
}

// NewRestorer creates a Restorer trying sources in order.
func NewRestorer(limit int, sources ...model.SnapshotStore) *Restorer {
	return &Restorer{limit: limit, sources: sources}
}

// Restore returns the engine rebuilt from the first usable snapshot and the
// time that snapshot was taken (zero on a cold start).
func (r *Restorer) Restore(ctx context.Context) (*Engine, time.Time) {
	for i, src := range r.sources {
		if src == nil {
			continue
		}
		data, err := src.ReadLatestSnapshotJSON(ctx)
		if err != nil {
			log.Printf("[restorer] source %d read error: %v", i, err)
			continue
		}
		if data == nil {
			continue
		}
		snap, err := DecodeSnapshot(data)
		if err != nil {
			log.Printf("[restorer] source %d: %v", i, err)
			continue
		}
		e, err := r.RestoreFromSnap(snap)
		if err != nil {
			log.Printf("[restorer] WARNING: source %d restore failed: %v", i, err)
			continue
		}
		return e, snap.TakenAt
	}

	log.Println("[restorer] no snapshot found, cold starting indicator engine")
	return NewEngine(r.limit), time.Time{}
}

// RestoreFromSnap rebuilds an engine from snap. A nil snap cold-starts.
func (r *Restorer) RestoreFromSnap(snap *EngineSnapshot) (*Engine, error) {
	if snap == nil {
		return NewEngine(r.limit), nil
	}
	e, err := RestoreEngine(r.limit, snap)
	if err != nil {
		return nil, err
	}
	log.Printf("[restorer] restored %d series from snapshot taken at %s (version=%d)",
		len(snap.Series), snap.TakenAt.Format(time.RFC3339), snap.Version)
	return e, nil
}

// Replay feeds candles into e to catch up after a restore. Returns the number
// of updates applied.
func (r *Restorer) Replay(e *Engine, candles []model.CandleUpdate) int {
	n := 0
	for _, c := range candles {
		if e.Apply(c) != Ignored {
			n++
		}
	}
	if n > 0 {
		log.Printf("[restorer] replayed %d candles to catch up", n)
	}
	return n
}
