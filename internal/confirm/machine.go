package confirm

import (
	"time"

	"alert-systemv1/internal/model"
)

// Machine is the per-alert confirmation side table.
// It is not safe for concurrent use; the evaluation loop owns it.
type Machine struct {
	states map[string]*State
}

// NewMachine returns an empty Machine.
func NewMachine() *Machine {
	return &Machine{states: make(map[string]*State, 64)}
}

// Evaluate advances the state of alert id by one tick. Unknown ids start Idle.
func (m *Machine) Evaluate(id string, in Input) Report {
	st, ok := m.states[id]
	if !ok {
		st = &State{}
		m.states[id] = st
	}

	if st.Triggered {
		return Report{Outcome: AlreadyTriggered}
	}

	switch in.Kind {
	case model.ConfirmImmediate:
		if !in.Met {
			return Report{Outcome: NoAction}
		}
		st.Triggered = true
		return Report{Outcome: TriggeredImmediate}

	case model.ConfirmTimeDelay:
		return st.timeDelay(in)

	case model.ConfirmCandleDelay:
		return st.candles(in, in.DelayCandles)

	case model.ConfirmCandleClose:
		// The close that first satisfies the condition counts as one;
		// DelayCandles adds further consecutive closes on top of it.
		return st.candles(in, in.DelayCandles+1)
	}
	return Report{Outcome: NoAction}
}

func (st *State) timeDelay(in Input) Report {
	pending := !st.PendingSince.IsZero()

	if !in.Met {
		if pending {
			st.PendingSince = time.Time{}
			return Report{Outcome: TimerReset}
		}
		return Report{Outcome: NoAction}
	}

	if !pending {
		st.PendingSince = in.Now
		return Report{Outcome: TimerStarted}
	}
	delay := time.Duration(in.DelaySeconds) * time.Second
	if in.Now.Sub(st.PendingSince) >= delay {
		st.PendingSince = time.Time{}
		st.Triggered = true
		return Report{Outcome: Triggered}
	}
	return Report{Outcome: Waiting}
}

func (st *State) candles(in Input, required int) Report {
	if !in.CandleClosed {
		if in.Met {
			return Report{Outcome: WaitingClose}
		}
		return Report{Outcome: NoAction}
	}

	if !in.Met {
		if st.CandleCount > 0 {
			st.CandleCount = 0
			return Report{Outcome: Reset}
		}
		return Report{Outcome: NoAction}
	}

	st.CandleCount++
	if st.CandleCount >= required {
		st.CandleCount = 0
		st.Triggered = true
		return Report{Outcome: Triggered}
	}
	return Report{Outcome: Counting, Count: st.CandleCount}
}

// State returns a copy of the state for id and whether it exists.
func (m *Machine) State(id string) (State, bool) {
	st, ok := m.states[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Drop forgets id.
func (m *Machine) Drop(id string) {
	delete(m.states, id)
}

// Retain drops every state whose id is not in keep and returns how many
// were dropped.
func (m *Machine) Retain(keep map[string]struct{}) int {
	dropped := 0
	for id := range m.states {
		if _, ok := keep[id]; !ok {
			delete(m.states, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked alerts.
func (m *Machine) Len() int { return len(m.states) }

// Pending returns how many alerts hold confirmation progress.
func (m *Machine) Pending() int {
	n := 0
	for _, st := range m.states {
		if !st.PendingSince.IsZero() || st.CandleCount > 0 {
			n++
		}
	}
	return n
}
