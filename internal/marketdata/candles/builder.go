// Package candles builds interval candles from a tick stream.
//
// Each tick updates the forming candle of every configured interval in O(1).
// When a tick lands in a new bucket the previous candle is emitted as closed.
// Candle-based alert confirmation works from a tick-only feed this way.
package candles

import (
	"time"

	"alert-systemv1/internal/model"
)

// state holds the forming candle for one (symbol, interval) pair.
type state struct {
	bucket time.Time
	candle model.CandleUpdate
}

type interval struct {
	name string
	dur  time.Duration
}

// Builder resamples ticks into candles for several intervals.
// Not goroutine-safe: run it in the ingestion goroutine.
type Builder struct {
	intervals []interval

	// states[intervalIdx][symbol]
	states []map[string]*state

	// Symbols that have produced a spot tick. Perp ticks are only used for
	// symbols without spot quotes.
	spotSeen map[string]bool

	// Emit receives every forming and closed candle update.
	Emit func(model.CandleUpdate)

	// OnStaleTick is called when a tick older than the forming bucket is dropped (optional).
	OnStaleTick func(t model.Tick)
}

// New creates a Builder for the given intervals ("1m", "5m", ...).
func New(intervals []string, emit func(model.CandleUpdate)) (*Builder, error) {
	b := &Builder{
		states:   make([]map[string]*state, 0, len(intervals)),
		spotSeen: make(map[string]bool, 64),
		Emit:     emit,
	}
	for _, name := range intervals {
		d, err := model.IntervalDuration(name)
		if err != nil {
			return nil, err
		}
		b.intervals = append(b.intervals, interval{name: name, dur: d})
		b.states = append(b.states, make(map[string]*state, 64))
	}
	return b, nil
}

// Intervals returns the configured interval names.
func (b *Builder) Intervals() []string {
	out := make([]string, len(b.intervals))
	for i, iv := range b.intervals {
		out[i] = iv.name
	}
	return out
}

// Process folds one tick into every interval. This is the hot path.
func (b *Builder) Process(t model.Tick) {
	if t.Price <= 0 || t.Symbol == "" {
		return
	}
	switch t.Market {
	case model.MarketPerp:
		if b.spotSeen[t.Symbol] {
			return
		}
	default:
		b.spotSeen[t.Symbol] = true
	}

	ts := t.TS.UTC()
	for i, iv := range b.intervals {
		bucket := ts.Truncate(iv.dur)
		st, exists := b.states[i][t.Symbol]

		if exists && bucket.Before(st.bucket) {
			if b.OnStaleTick != nil {
				b.OnStaleTick(t)
			}
			continue
		}

		if exists && bucket.After(st.bucket) {
			// New bucket: finalize the forming candle
			st.candle.Closed = true
			b.emit(st.candle)
			exists = false
		}

		if !exists {
			st = &state{
				bucket: bucket,
				candle: model.CandleUpdate{
					Symbol:   t.Symbol,
					Interval: iv.name,
					TS:       bucket,
					Open:     t.Price,
					High:     t.Price,
					Low:      t.Price,
					Close:    t.Price,
				},
			}
			b.states[i][t.Symbol] = st
			b.emit(st.candle)
			continue
		}

		c := &st.candle
		if t.Price > c.High {
			c.High = t.Price
		}
		if t.Price < c.Low {
			c.Low = t.Price
		}
		c.Close = t.Price
		b.emit(*c)
	}
}

// Flush emits every forming candle as closed and clears all state.
func (b *Builder) Flush() {
	for i := range b.intervals {
		for sym, st := range b.states[i] {
			st.candle.Closed = true
			b.emit(st.candle)
			delete(b.states[i], sym)
		}
	}
}

func (b *Builder) emit(c model.CandleUpdate) {
	if b.Emit != nil {
		b.Emit(c)
	}
}
