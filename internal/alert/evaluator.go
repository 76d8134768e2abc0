// Package alert runs the alert evaluation loop.
//
// Market data enters through Enqueue, a non-blocking push into a bounded SPSC
// ring. Pass drains the ring, refreshes the price book and indicator
// histories, re-reads the active alerts and feeds each one through the
// confirmation machine. A fired alert is deactivated, persisted, recorded in
// history and handed to the dispatcher, in that order.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"alert-systemv1/internal/confirm"
	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/logger"
	"alert-systemv1/internal/metrics"
	"alert-systemv1/internal/model"
	"alert-systemv1/internal/notify"
	"alert-systemv1/internal/ringbuf"
)

// DefaultQueueSize is the ingest ring capacity when none is configured.
const DefaultQueueSize = 8192

// Dispatcher delivers the side effects of a fired alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, t notify.Trigger) error
}

// Config wires an Evaluator. Alerts and Dispatcher are required.
type Config struct {
	Alerts     model.AlertStore
	Drawings   model.DrawingStore // optional; drawing alerts are skipped without it
	Dispatcher Dispatcher
	Engine     *indicator.Engine // optional; a fresh engine is created when nil
	QueueSize  int
	Metrics    *metrics.Metrics // optional
	Logger     *slog.Logger     // optional; slog.Default() when nil
}

// PassStats summarizes one evaluation pass.
type PassStats struct {
	Updates   int // updates drained from the queue
	Active    int // active alerts seen
	Evaluated int // alerts fed to the confirmation machine
	Skipped   int // alerts skipped for missing data or a malformed spec
	Fired     int
	Pruned    int // confirmation states dropped for vanished alerts
}

// Evaluator owns all evaluation state: the confirmation side table, the
// indicator engine, the price book and the ingest ring. Enqueue may be called
// from one producer goroutine; everything else runs on the evaluation goroutine.
type Evaluator struct {
	alerts   model.AlertStore
	drawings model.DrawingStore
	dispatch Dispatcher
	engine   *indicator.Engine
	queue    *ringbuf.Ring[model.Update]
	machine  *confirm.Machine
	book     *PriceBook
	algos    *algoCache
	m        *metrics.Metrics
	log      *slog.Logger

	// candle closes seen since the previous pass, by series key
	closed map[string]float64

	// alert ids already warned about a malformed spec
	warned map[string]struct{}
}

// New creates an Evaluator.
func New(cfg Config) (*Evaluator, error) {
	if cfg.Alerts == nil {
		return nil, errors.New("alert: nil alert store")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("alert: nil dispatcher")
	}
	if cfg.Engine == nil {
		cfg.Engine = indicator.NewEngine(indicator.DefaultHistoryLimit)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Evaluator{
		alerts:   cfg.Alerts,
		drawings: cfg.Drawings,
		dispatch: cfg.Dispatcher,
		engine:   cfg.Engine,
		queue:    ringbuf.New[model.Update](cfg.QueueSize),
		machine:  confirm.NewMachine(),
		book:     NewPriceBook(),
		algos:    newAlgoCache(),
		m:        cfg.Metrics,
		log:      cfg.Logger.With(slog.String("component", "evaluator")),
		closed:   make(map[string]float64, 16),
		warned:   make(map[string]struct{}),
	}, nil
}

// Engine returns the indicator engine, for snapshots.
func (e *Evaluator) Engine() *indicator.Engine { return e.engine }

// Machine returns the confirmation side table.
func (e *Evaluator) Machine() *confirm.Machine { return e.machine }

// Enqueue hands an update to the evaluation loop without blocking.
// It returns false, and counts a drop, when the queue is full.
func (e *Evaluator) Enqueue(u model.Update) bool {
	if u.Tick == nil && u.Candle == nil {
		return false
	}
	if !e.queue.Push(u) {
		if e.m != nil {
			e.m.QueueDrops.Inc()
		}
		return false
	}
	return true
}

// Run calls Pass every interval until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("evaluation loop started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("evaluation loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			e.Pass(ctx, now)
		}
	}
}

// Pass runs one evaluation cycle at now. No single alert can fail the pass;
// only an unreadable alert store ends it early.
func (e *Evaluator) Pass(ctx context.Context, now time.Time) PassStats {
	start := time.Now()
	var st PassStats

	for k := range e.closed {
		delete(e.closed, k)
	}
	st.Updates = e.queue.Drain(0, e.apply)

	alerts, err := e.alerts.GetAlerts(ctx, "")
	if err != nil {
		e.log.Error("load alerts failed", slog.Any("error", err))
		e.observePass(start, st)
		return st
	}

	active := make(map[string]struct{}, len(alerts))
	for i := range alerts {
		if alerts[i].Active {
			active[alerts[i].ID] = struct{}{}
		}
	}
	st.Active = len(active)
	st.Pruned = e.machine.Retain(active)
	for id := range e.warned {
		if _, ok := active[id]; !ok {
			delete(e.warned, id)
		}
	}

	drawings := make(map[string][]model.DrawingSpec)
	for i := range alerts {
		a := &alerts[i]
		if !a.Active {
			continue
		}
		fired, err := e.evaluate(ctx, a, now, drawings)
		switch {
		case err != nil:
			st.Skipped++
			e.skipped(a, err)
			continue
		case fired:
			st.Fired++
		}
		st.Evaluated++
	}
	e.algos.retain(drawings)

	e.observePass(start, st)
	return st
}

// apply folds one queued update into the book, the engine and the closed set.
func (e *Evaluator) apply(u model.Update) {
	if u.Tick != nil {
		e.book.Update(*u.Tick)
		if e.m != nil {
			e.m.UpdatesTotal.WithLabelValues("tick").Inc()
		}
	}
	if u.Candle != nil {
		c := *u.Candle
		if e.engine.Apply(c) == indicator.Closed {
			e.closed[c.Key()] = c.Close
		}
		if e.m != nil {
			e.m.UpdatesTotal.WithLabelValues("candle").Inc()
		}
	}
}

// evaluate runs one alert through resolution, the crossing test and the
// confirmation machine, and fires it when the machine says so.
func (e *Evaluator) evaluate(ctx context.Context, a *model.AlertSpec, now time.Time, drawings map[string][]model.DrawingSpec) (bool, error) {
	// A non-finite threshold still reaches the machine, as condition not met.
	if err := a.Validate(); err != nil && !errors.Is(err, model.ErrInvalidNumeric) {
		return false, err
	}

	obs, err := e.observe(ctx, a, now, drawings)
	if err != nil {
		return false, err
	}

	met, crossed := false, 0.0
	if err := obs.finite(); err != nil {
		e.log.Warn("condition not met",
			slog.String("alert_id", a.ID), slog.String("symbol", a.Symbol), slog.Any("error", err))
	} else {
		crossed, met = crossedTarget(a.Condition, obs.current, obs.targets)
	}

	rep := e.machine.Evaluate(a.ID, confirm.InputFor(a, met, now, obs.candleClosed))
	if e.m != nil {
		e.m.EvaluationsTotal.Inc()
	}
	e.log.Debug("evaluated",
		slog.String("alert_id", a.ID),
		slog.Float64("current", obs.current),
		slog.Bool("met", met),
		slog.String("report", rep.String()))

	if !rep.Fired() {
		return false, nil
	}
	e.fire(ctx, *a, crossed, obs.current, now)
	return true, nil
}

// fire commits a trigger. The store writes come first and stand even when
// dispatch fails.
func (e *Evaluator) fire(ctx context.Context, a model.AlertSpec, target, price float64, now time.Time) {
	traceID := logger.GenerateTraceID(a.ID, now)
	ctx = logger.WithTraceID(ctx, traceID)
	log := logger.FromContext(ctx, e.log).With(
		slog.String("alert_id", a.ID), slog.String("symbol", a.Symbol))

	a.Active = false
	if err := e.alerts.SaveAlert(ctx, a); err != nil {
		log.Error("deactivate alert failed", slog.Any("error", err))
	}

	rec := model.HistoryRecord{
		AlertID:   a.ID,
		Symbol:    a.Symbol,
		Message:   notify.FormatMessage(a.Symbol, a.Condition, target, price),
		Target:    target,
		Price:     price,
		Timestamp: now.UTC(),
	}
	if err := e.alerts.AddAlertHistory(ctx, rec); err != nil {
		log.Error("append alert history failed", slog.Any("error", err))
	}

	log.Info("alert triggered",
		slog.String("condition", string(a.Condition)),
		slog.String("confirmation", string(a.Confirmation)),
		slog.Float64("target", target),
		slog.Float64("price", price))

	if e.m != nil {
		e.m.TriggersTotal.WithLabelValues(string(a.TargetType)).Inc()
	}

	err := e.dispatch.Dispatch(ctx, notify.Trigger{
		Alert:   a,
		Target:  target,
		Price:   price,
		At:      now,
		TraceID: traceID,
	})
	if err != nil {
		log.Error("dispatch failed", slog.Any("error", err))
	}
}

func (e *Evaluator) skipped(a *model.AlertSpec, err error) {
	if errors.Is(err, model.ErrDataUnavailable) {
		if e.m != nil {
			e.m.SkippedTotal.WithLabelValues("data_unavailable").Inc()
		}
		e.log.Debug("skipped", slog.String("alert_id", a.ID), slog.Any("error", err))
		return
	}

	if e.m != nil {
		e.m.SkippedTotal.WithLabelValues("malformed").Inc()
	}
	if _, seen := e.warned[a.ID]; seen {
		return
	}
	e.warned[a.ID] = struct{}{}
	e.log.Warn("alert skipped", slog.String("alert_id", a.ID), slog.Any("error", err))
}

func (e *Evaluator) observePass(start time.Time, st PassStats) {
	if e.m == nil {
		return
	}
	e.m.PassesTotal.Inc()
	e.m.PassDuration.Observe(time.Since(start).Seconds())
	e.m.ActiveAlerts.Set(float64(st.Active))
	e.m.PendingStates.Set(float64(e.machine.Pending()))
	e.m.StaleStatesPruned.Add(float64(st.Pruned))
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, model.ErrDataUnavailable)...)
}
