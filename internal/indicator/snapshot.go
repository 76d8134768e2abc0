package indicator

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is the current EngineSnapshot schema version.
const SnapshotVersion = 1

// SeriesSnapshot holds one (symbol, interval) history.
type SeriesSnapshot struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Closes   []float64 `json:"closes"`
	LastTS   time.Time `json:"last_ts"`
	Closed   bool      `json:"closed"`
}

// EngineSnapshot holds the full state of the indicator engine.
type EngineSnapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Series  []SeriesSnapshot `json:"series"`
	Version int              `json:"version"` // schema version for forward compat
}

// SnapshotEngine captures the histories of e.
func SnapshotEngine(e *Engine, now time.Time) *EngineSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &EngineSnapshot{
		TakenAt: now.UTC(),
		Series:  make([]SeriesSnapshot, 0, len(e.series)),
		Version: SnapshotVersion,
	}
	for key, h := range e.series {
		sym, iv := splitSeriesKey(key)
		snap.Series = append(snap.Series, SeriesSnapshot{
			Symbol:   sym,
			Interval: iv,
			Closes:   h.Closes(),
			LastTS:   h.lastTS,
			Closed:   h.closed,
		})
	}
	return snap
}

// RestoreEngine rebuilds an Engine from snap. Histories longer than limit are
// trimmed to their newest closes.
func RestoreEngine(limit int, snap *EngineSnapshot) (*Engine, error) {
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}
	e := NewEngine(limit)
	for _, s := range snap.Series {
		if s.Symbol == "" || s.Interval == "" {
			continue
		}
		closes := s.Closes
		if len(closes) > e.limit {
			closes = closes[len(closes)-e.limit:]
		}
		h := NewHistory(e.limit)
		h.closes = append(h.closes, closes...)
		h.lastTS = s.LastTS
		h.closed = s.Closed
		e.series[s.Symbol+"|"+s.Interval] = h
	}
	return e, nil
}

// EncodeSnapshot serializes snap to JSON.
func EncodeSnapshot(snap *EngineSnapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// DecodeSnapshot parses a JSON snapshot.
func DecodeSnapshot(data []byte) (*EngineSnapshot, error) {
	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
