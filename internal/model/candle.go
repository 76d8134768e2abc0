package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Intervals supported by alerts, shortest first.
var Intervals = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration returns the bucket length for an interval string like "15m".
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("unknown interval %q", interval)
	}
	return d, nil
}

// CandleUpdate is one update from the candle/history feed for a (symbol, interval).
// While Closed is false the update replaces the forming candle's close; once
// Closed is true the value is final.
type CandleUpdate struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // "1m", "5m", ...
	TS       time.Time `json:"ts"`       // bucket start time (UTC, interval-aligned)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Closed   bool      `json:"closed"`
}

// Key returns "symbol|interval".
func (c *CandleUpdate) Key() string {
	return SeriesKey(c.Symbol, c.Interval)
}

// JSON returns the JSON-encoded candle update (ignoring errors for hot-path usage).
func (c *CandleUpdate) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// SeriesKey builds the key for a (symbol, interval) price series.
func SeriesKey(symbol, interval string) string {
	return symbol + "|" + interval
}

// Update is the envelope pushed from ingestion into the evaluation queue.
// Exactly one of Tick or Candle is set.
type Update struct {
	Tick   *Tick
	Candle *CandleUpdate
}
