package indicator

import (
	"sort"
	"strings"
	"sync"

	"alert-systemv1/internal/model"
)

// Engine holds per-(symbol, interval) close histories and computes indicator
// values on demand. Each evaluation context owns its own Engine.
//
// Apply and Value are called from the evaluation goroutine; the lock only
// guards against the periodic snapshot running elsewhere.
type Engine struct {
	mu     sync.RWMutex
	limit  int
	series map[string]*History
}

// NewEngine creates an engine whose histories keep at most limit closes.
func NewEngine(limit int) *Engine {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Engine{
		limit:  limit,
		series: make(map[string]*History, 64),
	}
}

// Apply feeds a candle update into the matching history. A closed update
// finalizes the element; an open one creates or updates the forming element.
func (e *Engine) Apply(c model.CandleUpdate) Change {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := c.Key()
	h, ok := e.series[key]
	if !ok {
		h = NewHistory(e.limit)
		e.series[key] = h
	}
	return h.Apply(c.Close, c.TS, c.Closed)
}

// Value computes k for (symbol, interval). Static keys ignore history.
// Returns NaN when there is not enough data.
func (e *Engine) Value(symbol, interval string, k Key) float64 {
	if k.Static() {
		return k.Compute(nil)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.series[model.SeriesKey(symbol, interval)]
	if !ok {
		return nan
	}
	return k.Compute(h.closes)
}

// Closes returns a copy of the history for (symbol, interval), or nil.
func (e *Engine) Closes(symbol, interval string) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if h, ok := e.series[model.SeriesKey(symbol, interval)]; ok {
		return h.Closes()
	}
	return nil
}

// Drop forgets the history for (symbol, interval).
func (e *Engine) Drop(symbol, interval string) {
	e.mu.Lock()
	delete(e.series, model.SeriesKey(symbol, interval))
	e.mu.Unlock()
}

// Keys returns the tracked series keys ("symbol|interval"), sorted.
func (e *Engine) Keys() []string {
	e.mu.RLock()
	keys := make([]string, 0, len(e.series))
	for k := range e.series {
		keys = append(keys, k)
	}
	e.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// splitSeriesKey is the inverse of model.SeriesKey.
func splitSeriesKey(key string) (symbol, interval string) {
	i := strings.LastIndexByte(key, '|')
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}
