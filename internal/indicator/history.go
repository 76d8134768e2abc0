package indicator

import "time"

// DefaultHistoryLimit retains enough closes for the longest common periods.
const DefaultHistoryLimit = 180

// History is a bounded, ordered sequence of closes for one (symbol, interval).
// The last element may belong to a forming candle and is updated in place
// until that candle closes.
type History struct {
	limit  int
	closes []float64
	lastTS time.Time
	closed bool // whether the last element is final
}

// NewHistory creates a history keeping at most limit closes.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, closes: make([]float64, 0, limit)}
}

// Append adds a new element and evicts the oldest beyond the limit.
func (h *History) Append(close float64, ts time.Time, closed bool) {
	if len(h.closes) == h.limit {
		copy(h.closes, h.closes[1:])
		h.closes = h.closes[:len(h.closes)-1]
	}
	h.closes = append(h.closes, close)
	h.lastTS = ts
	h.closed = closed
}

// UpdateLast replaces the last element. It is a no-op on an empty history.
func (h *History) UpdateLast(close float64, closed bool) {
	if len(h.closes) == 0 {
		return
	}
	h.closes[len(h.closes)-1] = close
	h.closed = closed
}

// Change is what Apply did with a candle update.
type Change int

const (
	Ignored Change = iota // older than the newest element, or that element is already final
	Updated               // a forming element was appended or changed
	Closed                // an element became final
)

// Apply routes a candle update: a newer candle appends, the forming candle
// updates in place. Updates for a candle that is already final are ignored,
// so a re-delivered close is reported Closed only once.
func (h *History) Apply(close float64, ts time.Time, closed bool) Change {
	switch {
	case len(h.closes) == 0 || ts.After(h.lastTS):
		h.Append(close, ts, closed)
	case ts.Equal(h.lastTS) && !h.closed:
		h.UpdateLast(close, closed)
	default:
		return Ignored
	}
	if closed {
		return Closed
	}
	return Updated
}

// Closes returns a copy of the retained closes, oldest first.
func (h *History) Closes() []float64 {
	out := make([]float64, len(h.closes))
	copy(out, h.closes)
	return out
}

func (h *History) Len() int { return len(h.closes) }

// LastClosed reports whether the newest element is final.
func (h *History) LastClosed() bool { return h.closed }
