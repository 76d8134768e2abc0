package target

import (
	"errors"
	"fmt"
	"math"

	"alert-systemv1/internal/model"
)

var ErrMalformedDrawing = errors.New("malformed drawing")

// FromDrawing converts a drawing into its Algo. It is called once per drawing
// edit; the result is independent of the evaluation time.
func FromDrawing(d model.DrawingSpec) (Algo, error) {
	for _, p := range d.Points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			return nil, fmt.Errorf("drawing %s: %w", d.ID, model.ErrInvalidNumeric)
		}
	}

	switch d.Type {
	case model.DrawingHLine:
		if len(d.Points) < 1 {
			return nil, malformed(d, "hline needs 1 point")
		}
		return PriceLevel{Price: d.Points[0].Price}, nil

	case model.DrawingTrendline:
		if len(d.Points) < 2 {
			return nil, malformed(d, "trendline needs 2 points")
		}
		return rayThrough(d, d.Points[0], d.Points[1])

	case model.DrawingChannel:
		ray, height, err := channelBase(d)
		if err != nil {
			return nil, err
		}
		return ParallelChannel{LinearRay: ray, Offsets: []float64{0, height}}, nil

	case model.DrawingFib:
		ray, height, err := channelBase(d)
		if err != nil {
			return nil, err
		}
		offsets := make([]float64, len(FibLevels))
		for i, lvl := range FibLevels {
			offsets[i] = height * lvl
		}
		return MultiRay{LinearRay: ray, Offsets: offsets}, nil

	case model.DrawingRect:
		if len(d.Points) < 2 {
			return nil, malformed(d, "rect needs 2 points")
		}
		a, b := d.Points[0], d.Points[1]
		return RectZone{
			TStart: min64(a.Time, b.Time),
			TEnd:   max64(a.Time, b.Time),
			PHigh:  math.Max(a.Price, b.Price),
			PLow:   math.Min(a.Price, b.Price),
		}, nil
	}
	return nil, malformed(d, fmt.Sprintf("unknown type %q", d.Type))
}

func rayThrough(d model.DrawingSpec, p1, p2 model.Point) (LinearRay, error) {
	if p1.Time == p2.Time {
		return LinearRay{}, malformed(d, "ray points share a timestamp")
	}
	slope := (p2.Price - p1.Price) / float64(p2.Time-p1.Time)
	return LinearRay{T0: p1.Time, P0: p1.Price, Slope: slope}, nil
}

// channelBase returns the main ray through the first two points and the
// vertical distance of the third point from it.
func channelBase(d model.DrawingSpec) (LinearRay, float64, error) {
	if len(d.Points) < 3 {
		return LinearRay{}, 0, malformed(d, fmt.Sprintf("%s needs 3 points", d.Type))
	}
	ray, err := rayThrough(d, d.Points[0], d.Points[1])
	if err != nil {
		return LinearRay{}, 0, err
	}
	third := d.Points[2]
	return ray, third.Price - ray.At(third.Time), nil
}

func malformed(d model.DrawingSpec, why string) error {
	return fmt.Errorf("drawing %s: %s: %w", d.ID, why, ErrMalformedDrawing)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
