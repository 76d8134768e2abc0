package target

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"alert-systemv1/internal/model"
)

func pts(p ...float64) []model.Point {
	out := make([]model.Point, 0, len(p)/2)
	for i := 0; i+1 < len(p); i += 2 {
		out = append(out, model.Point{Time: int64(p[i]), Price: p[i+1]})
	}
	return out
}

func TestLinearRay_AtT0(t *testing.T) {
	rays := []LinearRay{
		{T0: 0, P0: 10, Slope: 0},
		{T0: 1700000000000, P0: 21534.5, Slope: 0.0003},
		{T0: -5, P0: -1, Slope: -7},
	}
	for _, r := range rays {
		got, ok := Resolve(r, r.T0)
		if !ok || len(got) != 1 || got[0] != r.P0 {
			t.Errorf("ray %+v at t0: got %v ok=%v, want [%v]", r, got, ok, r.P0)
		}
	}
}

func TestTrendline_Midpoint(t *testing.T) {
	a, err := FromDrawing(model.DrawingSpec{ID: "d1", Type: model.DrawingTrendline, Points: pts(1000, 100, 2000, 200)})
	if err != nil {
		t.Fatalf("FromDrawing: %v", err)
	}
	got, ok := Resolve(a, 1500)
	if !ok || len(got) != 1 {
		t.Fatalf("expected one target, got %v ok=%v", got, ok)
	}
	if math.Abs(got[0]-150) > 1e-9 {
		t.Errorf("expected 150, got %f", got[0])
	}
}

func TestChannel_Offsets(t *testing.T) {
	// Main ray flat at 100, third point 20 above.
	a, err := FromDrawing(model.DrawingSpec{ID: "c1", Type: model.DrawingChannel, Points: pts(0, 100, 1000, 100, 500, 120)})
	if err != nil {
		t.Fatalf("FromDrawing: %v", err)
	}
	ch, ok := a.(ParallelChannel)
	if !ok {
		t.Fatalf("expected ParallelChannel, got %T", a)
	}
	if !reflect.DeepEqual(ch.Offsets, []float64{0, 20}) {
		t.Fatalf("offsets = %v, want [0 20]", ch.Offsets)
	}

	for _, ts := range []int64{-1000, 0, 750, 99999} {
		got, ok := Resolve(ch, ts)
		if !ok || len(got) != len(ch.Offsets) {
			t.Fatalf("ts=%d: got %v ok=%v", ts, got, ok)
		}
		base := ch.At(ts)
		for i, off := range ch.Offsets {
			if got[i] != base+off {
				t.Errorf("ts=%d [%d]: got %f, want %f", ts, i, got[i], base+off)
			}
		}
	}
}

func TestFib_MultiRay(t *testing.T) {
	// Rising ray with slope 0.1/ms, third point 50 below the ray at t=500.
	a, err := FromDrawing(model.DrawingSpec{ID: "f1", Type: model.DrawingFib, Points: pts(0, 100, 1000, 200, 500, 100)})
	if err != nil {
		t.Fatalf("FromDrawing: %v", err)
	}
	m, ok := a.(MultiRay)
	if !ok {
		t.Fatalf("expected MultiRay, got %T", a)
	}
	if len(m.Offsets) != len(FibLevels) {
		t.Fatalf("expected %d offsets, got %d", len(FibLevels), len(m.Offsets))
	}
	for i, lvl := range FibLevels {
		if math.Abs(m.Offsets[i]-(-50*lvl)) > 1e-9 {
			t.Errorf("offset[%d] = %f, want %f", i, m.Offsets[i], -50*lvl)
		}
	}

	got, ok := Resolve(m, 2000)
	if !ok || len(got) != 8 {
		t.Fatalf("got %v ok=%v", got, ok)
	}
	if math.Abs(got[0]-300) > 1e-9 || math.Abs(got[7]-(300-50*1.618)) > 1e-9 {
		t.Errorf("unexpected levels %v", got)
	}
}

func TestRectZone(t *testing.T) {
	// Points given in reverse order; bounds must be normalized.
	a, err := FromDrawing(model.DrawingSpec{ID: "r1", Type: model.DrawingRect, Points: pts(2000, 90, 1000, 110)})
	if err != nil {
		t.Fatalf("FromDrawing: %v", err)
	}
	z := a.(RectZone)
	if z.TStart != 1000 || z.TEnd != 2000 || z.PHigh != 110 || z.PLow != 90 {
		t.Fatalf("unexpected zone %+v", z)
	}

	for _, ts := range []int64{999, 2001} {
		if got, ok := Resolve(z, ts); ok || got != nil {
			t.Errorf("ts=%d: expected inactive, got %v", ts, got)
		}
	}
	for _, ts := range []int64{1000, 1500, 2000} {
		got, ok := Resolve(z, ts)
		if !ok || !reflect.DeepEqual(got, []float64{110, 90}) {
			t.Errorf("ts=%d: got %v ok=%v", ts, got, ok)
		}
		if got[0] < got[1] {
			t.Errorf("ts=%d: pHigh < pLow", ts)
		}
	}
}

func TestHLine(t *testing.T) {
	a, err := FromDrawing(model.DrawingSpec{ID: "h", Type: model.DrawingHLine, Points: pts(5, 42.5)})
	if err != nil {
		t.Fatalf("FromDrawing: %v", err)
	}
	got, ok := Resolve(a, 123456)
	if !ok || !reflect.DeepEqual(got, []float64{42.5}) {
		t.Errorf("got %v ok=%v", got, ok)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	algos := []Algo{
		PriceLevel{Price: 1},
		LinearRay{T0: 10, P0: 5, Slope: 0.5},
		ParallelChannel{LinearRay: LinearRay{T0: 0, P0: 1, Slope: 1}, Offsets: []float64{0, 3}},
		MultiRay{LinearRay: LinearRay{T0: 0, P0: 1, Slope: -1}, Offsets: []float64{0, 1, 2}},
		RectZone{TStart: 0, TEnd: 10, PHigh: 2, PLow: 1},
	}
	for _, a := range algos {
		for _, ts := range []int64{-5, 0, 7, 100} {
			g1, ok1 := Resolve(a, ts)
			g2, ok2 := Resolve(a, ts)
			if ok1 != ok2 || !reflect.DeepEqual(g1, g2) {
				t.Errorf("%s at %d not idempotent: %v/%v vs %v/%v", a.Name(), ts, g1, ok1, g2, ok2)
			}
		}
	}
}

func TestResolve_Nil(t *testing.T) {
	if got, ok := Resolve(nil, 0); ok || got != nil {
		t.Errorf("nil algo: got %v ok=%v", got, ok)
	}
}

func TestFromDrawing_Malformed(t *testing.T) {
	cases := []model.DrawingSpec{
		{ID: "a", Type: model.DrawingHLine},
		{ID: "b", Type: model.DrawingTrendline, Points: pts(1, 1)},
		{ID: "c", Type: model.DrawingTrendline, Points: pts(1, 1, 1, 2)},
		{ID: "d", Type: model.DrawingChannel, Points: pts(1, 1, 2, 2)},
		{ID: "e", Type: model.DrawingFib, Points: pts(1, 1, 1, 2, 3, 3)},
		{ID: "f", Type: model.DrawingRect, Points: pts(1, 1)},
		{ID: "g", Type: "circle", Points: pts(1, 1, 2, 2)},
	}
	for _, d := range cases {
		if _, err := FromDrawing(d); !errors.Is(err, ErrMalformedDrawing) {
			t.Errorf("drawing %s: expected ErrMalformedDrawing, got %v", d.ID, err)
		}
	}

	_, err := FromDrawing(model.DrawingSpec{ID: "n", Type: model.DrawingHLine, Points: []model.Point{{Time: 1, Price: math.NaN()}}})
	if !errors.Is(err, model.ErrInvalidNumeric) {
		t.Errorf("NaN point: expected ErrInvalidNumeric, got %v", err)
	}
}

func TestCodec(t *testing.T) {
	in := MultiRay{LinearRay: LinearRay{T0: 1000, P0: 100, Slope: 0.1}, Offsets: []float64{0, 5, 10}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("decoded %+v, want %+v", out, in)
	}

	if _, err := Unmarshal([]byte(`{"algo":"spiral","params":{}}`)); !errors.Is(err, ErrUnknownAlgo) {
		t.Errorf("unknown algo: got %v", err)
	}
	if _, err := Unmarshal([]byte(`{"algo":"price_level"}`)); !errors.Is(err, ErrMalformedDrawing) {
		t.Errorf("missing params: got %v", err)
	}
}
