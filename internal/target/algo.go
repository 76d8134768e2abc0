// Package target turns chart drawings into price targets.
//
// A drawing is converted once (FromDrawing) into a timestamp-independent Algo.
// Resolve then evaluates the Algo at a given time. Ray values move with time,
// so callers resolve fresh on every evaluation tick; nothing is cached here.
package target

// Fib channel levels, including the 1.618 extension.
var FibLevels = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1, 1.618}

// Algo is the serialized, portable form of a drawing.
// The set of implementations is closed: PriceLevel, LinearRay,
// ParallelChannel, MultiRay and RectZone.
type Algo interface {
	// Name returns the wire tag, e.g. "linear_ray".
	Name() string

	// resolve returns the targets at ts (Unix ms), or false when inactive.
	resolve(ts int64) ([]float64, bool)
}

// PriceLevel is a horizontal line.
type PriceLevel struct {
	Price float64 `json:"price"`
}

// LinearRay is an infinite line through (T0, P0) with Slope in price per ms.
type LinearRay struct {
	T0    int64   `json:"t0"`
	P0    float64 `json:"p0"`
	Slope float64 `json:"slope"`
}

// ParallelChannel is a ray plus a parallel copy Height above (or below) it.
// Offsets is always [0, height].
type ParallelChannel struct {
	LinearRay
	Offsets []float64 `json:"offsets"`
}

// MultiRay is a Fibonacci channel: one parallel ray per level.
type MultiRay struct {
	LinearRay
	Offsets []float64 `json:"offsets"`
}

// RectZone is a time-bounded price band.
type RectZone struct {
	TStart int64   `json:"t_start"`
	TEnd   int64   `json:"t_end"`
	PHigh  float64 `json:"p_high"`
	PLow   float64 `json:"p_low"`
}

func (PriceLevel) Name() string      { return "price_level" }
func (LinearRay) Name() string       { return "linear_ray" }
func (ParallelChannel) Name() string { return "parallel_channel" }
func (MultiRay) Name() string        { return "multi_ray" }
func (RectZone) Name() string        { return "rect_zone" }

func (p PriceLevel) resolve(int64) ([]float64, bool) {
	return []float64{p.Price}, true
}

// At returns the ray's value at ts.
func (r LinearRay) At(ts int64) float64 {
	return r.P0 + r.Slope*float64(ts-r.T0)
}

func (r LinearRay) resolve(ts int64) ([]float64, bool) {
	return []float64{r.At(ts)}, true
}

func (c ParallelChannel) resolve(ts int64) ([]float64, bool) {
	return offsetRay(c.LinearRay, c.Offsets, ts)
}

func (m MultiRay) resolve(ts int64) ([]float64, bool) {
	return offsetRay(m.LinearRay, m.Offsets, ts)
}

func (z RectZone) resolve(ts int64) ([]float64, bool) {
	if ts < z.TStart || ts > z.TEnd {
		return nil, false
	}
	return []float64{z.PHigh, z.PLow}, true
}

func offsetRay(r LinearRay, offsets []float64, ts int64) ([]float64, bool) {
	if len(offsets) == 0 {
		return nil, false
	}
	base := r.At(ts)
	out := make([]float64, len(offsets))
	for i, off := range offsets {
		out[i] = base + off
	}
	return out, true
}

// Resolve evaluates a at ts (Unix ms). It returns false when the algo is nil
// or inactive at ts (a RectZone outside its time window).
func Resolve(a Algo, ts int64) ([]float64, bool) {
	if a == nil {
		return nil, false
	}
	return a.resolve(ts)
}
