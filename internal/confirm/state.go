// Package confirm decides when a met alert condition actually fires.
//
// A Machine keeps one State per alert id in a side table owned by the
// evaluation loop. Alert specs are never mutated here.
package confirm

import (
	"strconv"
	"time"

	"alert-systemv1/internal/model"
)

// State is the ephemeral confirmation progress of one alert.
type State struct {
	PendingSince time.Time // zero when no time-delay countdown is running
	CandleCount  int       // consecutive satisfying closed candles
	Triggered    bool      // terminal
}

// Idle reports whether the state holds no progress.
func (s State) Idle() bool {
	return s.PendingSince.IsZero() && s.CandleCount == 0 && !s.Triggered
}

// Outcome is what a single evaluation decided.
type Outcome string

const (
	AlreadyTriggered   Outcome = "ALREADY_TRIGGERED"
	TriggeredImmediate Outcome = "TRIGGERED_IMMEDIATE"
	Triggered          Outcome = "TRIGGERED"
	TimerStarted       Outcome = "TIMER_STARTED"
	Waiting            Outcome = "WAITING"
	TimerReset         Outcome = "TIMER_RESET"
	NoAction           Outcome = "NO_ACTION"
	WaitingClose       Outcome = "WAITING_CLOSE"
	Counting           Outcome = "COUNTING"
	Reset              Outcome = "RESET"
)

// Report is the result of Machine.Evaluate. Count is set for Counting.
type Report struct {
	Outcome Outcome
	Count   int
}

// Fired reports whether this evaluation moved the alert to Triggered.
func (r Report) Fired() bool {
	return r.Outcome == Triggered || r.Outcome == TriggeredImmediate
}

func (r Report) String() string {
	if r.Outcome == Counting {
		return string(Counting) + "(" + strconv.Itoa(r.Count) + ")"
	}
	return string(r.Outcome)
}

// Input is one evaluation tick for one alert.
type Input struct {
	Kind         model.Confirmation
	Met          bool
	Now          time.Time
	CandleClosed bool // a candle for the alert's interval closed since the last tick
	DelaySeconds int
	DelayCandles int
}

// InputFor builds an Input from the alert's confirmation settings.
func InputFor(a *model.AlertSpec, met bool, now time.Time, candleClosed bool) Input {
	return Input{
		Kind:         a.Confirmation,
		Met:          met,
		Now:          now,
		CandleClosed: candleClosed,
		DelaySeconds: a.DelaySeconds,
		DelayCandles: a.DelayCandles,
	}
}
