package alert

import (
	"context"
	"fmt"
	"math"
	"time"

	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/model"
	"alert-systemv1/internal/target"
)

// observation is what one alert is compared against in one pass.
type observation struct {
	current      float64
	targets      []float64
	candleClosed bool
}

func (o observation) finite() error {
	if math.IsNaN(o.current) || math.IsInf(o.current, 0) {
		return fmt.Errorf("current value %v: %w", o.current, model.ErrInvalidNumeric)
	}
	for _, t := range o.targets {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("target %v: %w", t, model.ErrInvalidNumeric)
		}
	}
	return nil
}

// observe resolves the current value and the target(s) of a at now.
func (e *Evaluator) observe(ctx context.Context, a *model.AlertSpec, now time.Time, drawings map[string][]model.DrawingSpec) (observation, error) {
	var obs observation

	// Candle-based alerts compare the close of a candle that closed since the
	// previous pass; otherwise the live price.
	price, havePrice := 0.0, false
	if a.Confirmation.CandleBased() {
		if c, ok := e.closed[model.SeriesKey(a.Symbol, a.Interval)]; ok {
			price, havePrice = c, true
			obs.candleClosed = true
		}
	}
	if !havePrice {
		price, havePrice = e.book.Price(a.Symbol)
	}

	switch a.TargetType {
	case model.TargetPrice:
		if !havePrice {
			return obs, unavailable("no price for %s", a.Symbol)
		}
		t, err := a.PriceTarget()
		if err != nil {
			return obs, err
		}
		obs.current, obs.targets = price, []float64{t}

	case model.TargetIndicator:
		key, err := indicator.ParseKey(a.TargetValue)
		if err != nil {
			return obs, fmt.Errorf("alert %s: %v: %w", a.ID, err, model.ErrMalformedSpec)
		}
		v := e.engine.Value(a.Symbol, a.Interval, key)
		if math.IsNaN(v) {
			return obs, unavailable("%s on %s %s", key, a.Symbol, a.Interval)
		}
		if key.IsThreshold() {
			// The oscillator itself crosses the user's threshold.
			obs.current, obs.targets = v, []float64{a.Target}
			break
		}
		if !havePrice {
			return obs, unavailable("no price for %s", a.Symbol)
		}
		obs.current, obs.targets = price, []float64{v}

	case model.TargetDrawing:
		if !havePrice {
			return obs, unavailable("no price for %s", a.Symbol)
		}
		algo, err := e.drawingAlgo(ctx, a, drawings)
		if err != nil {
			return obs, err
		}
		targets, ok := target.Resolve(algo, now.UnixMilli())
		if !ok {
			return obs, unavailable("drawing %s inactive at %d", a.TargetValue, now.UnixMilli())
		}
		obs.current, obs.targets = price, targets

	default:
		return obs, fmt.Errorf("alert %s: target type %q: %w", a.ID, a.TargetType, model.ErrMalformedSpec)
	}
	return obs, nil
}

// drawingAlgo finds the drawing a references and converts it, reusing the
// previous conversion while the drawing is unchanged.
func (e *Evaluator) drawingAlgo(ctx context.Context, a *model.AlertSpec, drawings map[string][]model.DrawingSpec) (target.Algo, error) {
	if e.drawings == nil {
		return nil, unavailable("no drawing store")
	}
	list, ok := drawings[a.Symbol]
	if !ok {
		var err error
		list, err = e.drawings.GetDrawings(ctx, a.Symbol)
		if err != nil {
			return nil, unavailable("load drawings for %s: %v", a.Symbol, err)
		}
		drawings[a.Symbol] = list
	}

	for i := range list {
		if list[i].ID == a.TargetValue {
			return e.algos.get(list[i])
		}
	}
	return nil, unavailable("drawing %s not found", a.TargetValue)
}

// crossedTarget applies the crossing test against every target and returns
// the first one satisfied. Up is >=, down is <=.
func crossedTarget(cond model.Condition, current float64, targets []float64) (float64, bool) {
	for _, t := range targets {
		switch cond {
		case model.CrossingUp:
			if current >= t {
				return t, true
			}
		case model.CrossingDown:
			if current <= t {
				return t, true
			}
		}
	}
	return 0, false
}

type cachedAlgo struct {
	spec model.DrawingSpec
	algo target.Algo
	err  error
}

// algoCache converts each drawing once per edit.
type algoCache struct {
	byID map[string]cachedAlgo
}

func newAlgoCache() *algoCache {
	return &algoCache{byID: make(map[string]cachedAlgo)}
}

func (c *algoCache) get(d model.DrawingSpec) (target.Algo, error) {
	if hit, ok := c.byID[d.ID]; ok && sameGeometry(hit.spec, d) {
		return hit.algo, hit.err
	}
	algo, err := target.FromDrawing(d)
	spec := d
	spec.Points = append([]model.Point(nil), d.Points...)
	c.byID[d.ID] = cachedAlgo{spec: spec, algo: algo, err: err}
	return algo, err
}

// retain drops cached conversions for drawings not loaded this pass.
func (c *algoCache) retain(loaded map[string][]model.DrawingSpec) {
	if len(c.byID) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(c.byID))
	for _, list := range loaded {
		for i := range list {
			seen[list[i].ID] = struct{}{}
		}
	}
	for id := range c.byID {
		if _, ok := seen[id]; !ok {
			delete(c.byID, id)
		}
	}
}

func sameGeometry(a, b model.DrawingSpec) bool {
	if a.Type != b.Type || len(a.Points) != len(b.Points) {
		return false
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			return false
		}
	}
	return true
}
