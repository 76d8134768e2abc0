package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"alert-systemv1/internal/model"
)

// Trigger is what the evaluation loop hands over when an alert fires.
type Trigger struct {
	Alert   model.AlertSpec
	Target  float64 // the target that was crossed
	Price   float64 // the compared value (price, or RSI for threshold alerts)
	At      time.Time
	TraceID string
}

// Notification is the push notification payload.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Vibration is a haptic pattern. PatternMS alternates on/off durations.
type Vibration struct {
	Mode      model.Vibration `json:"mode"`
	PatternMS []int           `json:"pattern_ms"`
	Repeat    bool            `json:"repeat"`
}

// Sound selects an alert sound.
type Sound struct {
	ID       string `json:"id"`
	Repeat   int    `json:"repeat"`
	Duration int    `json:"duration_sec,omitempty"`
}

// Event is the fully rendered side-effect set of one trigger.
// Optional effects are nil when the alert's actions disable them.
type Event struct {
	ID           string        `json:"id"`
	AlertID      string        `json:"alert_id"`
	Symbol       string        `json:"symbol"`
	Condition    string        `json:"condition"`
	Target       float64       `json:"target"`
	Price        float64       `json:"price"`
	Message      string        `json:"message"`
	Toast        string        `json:"toast,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Vibration    *Vibration    `json:"vibration,omitempty"`
	Sound        *Sound        `json:"sound,omitempty"`
	TraceID      string        `json:"trace_id,omitempty"`
	TS           time.Time     `json:"ts"`
}

// Vibration patterns: once is a single short pulse, continuous repeats
// pulse/pause until dismissed.
var (
	vibrateOnce       = []int{200}
	vibrateContinuous = []int{500, 500}
)

// BuildEvent renders the side effects configured on t.Alert.
func BuildEvent(id string, t Trigger) Event {
	a := t.Alert
	msg := FormatMessage(a.Symbol, a.Condition, t.Target, t.Price)

	ev := Event{
		ID:        id,
		AlertID:   a.ID,
		Symbol:    a.Symbol,
		Condition: string(a.Condition),
		Target:    t.Target,
		Price:     t.Price,
		Message:   msg,
		TraceID:   t.TraceID,
		TS:        t.At.UTC(),
	}

	if a.Actions.Toast {
		ev.Toast = msg
	}
	if a.Actions.Notification {
		ev.Notification = &Notification{
			Title: fmt.Sprintf("%s alert", a.Symbol),
			Body:  msg,
		}
	}
	switch a.Actions.Vibration {
	case model.VibrationOnce:
		ev.Vibration = &Vibration{Mode: model.VibrationOnce, PatternMS: vibrateOnce}
	case model.VibrationContinuous:
		ev.Vibration = &Vibration{Mode: model.VibrationContinuous, PatternMS: vibrateContinuous, Repeat: true}
	}
	if a.Actions.SoundID != "" {
		repeat := a.Actions.SoundRepeat
		if repeat <= 0 {
			repeat = 1
		}
		ev.Sound = &Sound{ID: a.Actions.SoundID, Repeat: repeat, Duration: a.Actions.SoundDuration}
	}
	return ev
}

// FormatMessage renders e.g. "BTCUSDT crossed above 64000.5 (now 64010.25)".
func FormatMessage(symbol string, cond model.Condition, target, price float64) string {
	dir := "above"
	if cond == model.CrossingDown {
		dir = "below"
	}
	return fmt.Sprintf("%s crossed %s %s (now %s)", symbol, dir, FormatPrice(target), FormatPrice(price))
}

// FormatPrice rounds to a precision that suits the magnitude of v and drops
// trailing zeros.
func FormatPrice(v float64) string {
	d := decimal.NewFromFloat(v)
	abs := d.Abs()
	places := int32(8)
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		places = 2
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		places = 4
	}
	return d.Round(places).String()
}
