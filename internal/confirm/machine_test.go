package confirm

import (
	"testing"
	"time"

	"alert-systemv1/internal/model"
)

func ms(v int64) time.Time { return time.UnixMilli(v) }

func expect(t *testing.T, step string, got Report, want Outcome) {
	t.Helper()
	if got.Outcome != want {
		t.Fatalf("%s: got %s, want %s", step, got, want)
	}
}

func TestImmediate(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmImmediate, Now: ms(0)}

	expect(t, "not met", m.Evaluate("a", in), NoAction)

	in.Met = true
	r := m.Evaluate("a", in)
	expect(t, "met", r, TriggeredImmediate)
	if !r.Fired() {
		t.Error("TriggeredImmediate should report Fired")
	}
}

func TestTimeDelay_WaitThenTrigger(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmTimeDelay, Met: true, DelaySeconds: 10}

	in.Now = ms(1000)
	expect(t, "t=1000", m.Evaluate("a", in), TimerStarted)

	in.Now = ms(6000)
	expect(t, "t=6000", m.Evaluate("a", in), Waiting)

	in.Now = ms(12000)
	expect(t, "t=12000", m.Evaluate("a", in), Triggered)

	st, _ := m.State("a")
	if !st.Triggered || !st.PendingSince.IsZero() {
		t.Errorf("unexpected state after trigger: %+v", st)
	}
}

func TestTimeDelay_ExactThresholdFires(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmTimeDelay, Met: true, DelaySeconds: 10, Now: ms(0)}
	m.Evaluate("a", in)

	in.Now = ms(10000)
	expect(t, "exactly 10s", m.Evaluate("a", in), Triggered)
}

func TestTimeDelay_ReversalResets(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmTimeDelay, Met: true, DelaySeconds: 10, Now: ms(0)}
	expect(t, "start", m.Evaluate("a", in), TimerStarted)

	in.Met, in.Now = false, ms(9000)
	expect(t, "reversal", m.Evaluate("a", in), TimerReset)

	in.Now = ms(9500)
	expect(t, "idle not met", m.Evaluate("a", in), NoAction)

	// No partial credit: the countdown restarts from scratch.
	in.Met, in.Now = true, ms(11000)
	expect(t, "restart", m.Evaluate("a", in), TimerStarted)
	in.Now = ms(15000)
	expect(t, "4s after restart", m.Evaluate("a", in), Waiting)
}

func TestTimeDelay_ZeroDelay(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmTimeDelay, Met: true, Now: ms(0)}
	expect(t, "first", m.Evaluate("a", in), TimerStarted)
	expect(t, "second", m.Evaluate("a", in), Triggered)
}

func TestCandleDelay_Three(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmCandleDelay, Met: true, DelayCandles: 3, Now: ms(0)}

	// Open-candle match does not advance the counter.
	expect(t, "open", m.Evaluate("a", in), WaitingClose)
	if st, _ := m.State("a"); st.CandleCount != 0 {
		t.Fatalf("open candle advanced counter to %d", st.CandleCount)
	}

	in.CandleClosed = true
	r := m.Evaluate("a", in)
	if r.Outcome != Counting || r.Count != 1 {
		t.Fatalf("close 1: got %s", r)
	}
	r = m.Evaluate("a", in)
	if r.Outcome != Counting || r.Count != 2 {
		t.Fatalf("close 2: got %s", r)
	}
	if r.String() != "COUNTING(2)" {
		t.Errorf("String() = %q", r.String())
	}

	in.CandleClosed = false
	expect(t, "open between", m.Evaluate("a", in), WaitingClose)

	in.CandleClosed = true
	expect(t, "close 3", m.Evaluate("a", in), Triggered)

	st, _ := m.State("a")
	if !st.Triggered || st.CandleCount != 0 {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestCandleDelay_ClosedFailureResets(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmCandleDelay, Met: true, CandleClosed: true, DelayCandles: 3}

	m.Evaluate("a", in)
	m.Evaluate("a", in)

	in.Met = false
	expect(t, "closed failure", m.Evaluate("a", in), Reset)
	if st, _ := m.State("a"); st.CandleCount != 0 {
		t.Fatalf("counter not reset: %d", st.CandleCount)
	}

	expect(t, "closed failure at zero", m.Evaluate("a", in), NoAction)

	in.CandleClosed = false
	expect(t, "open failure", m.Evaluate("a", in), NoAction)

	in.Met, in.CandleClosed = true, true
	r := m.Evaluate("a", in)
	if r.Outcome != Counting || r.Count != 1 {
		t.Fatalf("after reset: got %s", r)
	}
}

func TestCandleClose(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmCandleClose, Met: true}

	expect(t, "open", m.Evaluate("a", in), WaitingClose)
	in.CandleClosed = true
	expect(t, "first close", m.Evaluate("a", in), Triggered)

	// With an offset, one extra close is required.
	in.DelayCandles = 1
	r := m.Evaluate("b", in)
	if r.Outcome != Counting || r.Count != 1 {
		t.Fatalf("offset close 1: got %s", r)
	}
	expect(t, "offset close 2", m.Evaluate("b", in), Triggered)
}

func TestAlreadyTriggered_NoMutation(t *testing.T) {
	m := NewMachine()
	m.Evaluate("a", Input{Kind: model.ConfirmImmediate, Met: true})
	before, _ := m.State("a")

	inputs := []Input{
		{Kind: model.ConfirmImmediate, Met: true},
		{Kind: model.ConfirmImmediate, Met: false},
		{Kind: model.ConfirmTimeDelay, Met: true, Now: ms(5)},
		{Kind: model.ConfirmCandleDelay, Met: false, CandleClosed: true},
		{Kind: model.ConfirmCandleClose, Met: true, CandleClosed: true},
	}
	for i, in := range inputs {
		expect(t, "input", m.Evaluate("a", in), AlreadyTriggered)
		if after, _ := m.State("a"); after != before {
			t.Fatalf("input %d mutated state: %+v → %+v", i, before, after)
		}
	}
}

func TestRetainAndDrop(t *testing.T) {
	m := NewMachine()
	in := Input{Kind: model.ConfirmTimeDelay, Met: true, DelaySeconds: 60, Now: ms(0)}
	for _, id := range []string{"a", "b", "c"} {
		m.Evaluate(id, in)
	}
	if m.Len() != 3 || m.Pending() != 3 {
		t.Fatalf("len=%d pending=%d", m.Len(), m.Pending())
	}

	dropped := m.Retain(map[string]struct{}{"a": {}, "z": {}})
	if dropped != 2 || m.Len() != 1 {
		t.Fatalf("dropped=%d len=%d", dropped, m.Len())
	}
	if _, ok := m.State("b"); ok {
		t.Error("b should be gone")
	}

	m.Drop("a")
	if m.Len() != 0 {
		t.Errorf("expected empty machine, len=%d", m.Len())
	}

	// A vanished id that reappears starts fresh.
	expect(t, "fresh", m.Evaluate("b", in), TimerStarted)
}

func TestInputFor(t *testing.T) {
	a := &model.AlertSpec{Confirmation: model.ConfirmCandleDelay, DelaySeconds: 4, DelayCandles: 2}
	in := InputFor(a, true, ms(7), true)
	if in.Kind != model.ConfirmCandleDelay || !in.Met || !in.CandleClosed || in.DelaySeconds != 4 || in.DelayCandles != 2 || !in.Now.Equal(ms(7)) {
		t.Errorf("unexpected input %+v", in)
	}
}
