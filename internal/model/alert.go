package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TargetType selects how an alert's comparison target is obtained.
type TargetType string

const (
	TargetPrice     TargetType = "price"
	TargetIndicator TargetType = "indicator"
	TargetDrawing   TargetType = "drawing"
)

// Condition is the crossing direction an alert watches for.
type Condition string

const (
	CrossingUp   Condition = "crossing_up"
	CrossingDown Condition = "crossing_down"
)

// Confirmation is the policy deciding when a met condition fires.
type Confirmation string

const (
	ConfirmImmediate   Confirmation = "immediate"
	ConfirmTimeDelay   Confirmation = "time_delay"
	ConfirmCandleClose Confirmation = "candle_close"
	ConfirmCandleDelay Confirmation = "candle_delay"
)

// CandleBased reports whether the confirmation waits on candle closes.
func (c Confirmation) CandleBased() bool {
	return c == ConfirmCandleClose || c == ConfirmCandleDelay
}

// Vibration mode for a triggered alert.
type Vibration string

const (
	VibrationNone       Vibration = "none"
	VibrationOnce       Vibration = "once"
	VibrationContinuous Vibration = "continuous"
)

// Actions configures the side effects of a triggered alert.
type Actions struct {
	Toast         bool      `json:"toast" yaml:"toast"`
	Notification  bool      `json:"notification" yaml:"notification"`
	Vibration     Vibration `json:"vibration,omitempty" yaml:"vibration"`
	SoundID       string    `json:"sound_id,omitempty" yaml:"sound_id"`
	SoundRepeat   int       `json:"sound_repeat,omitempty" yaml:"sound_repeat"`
	SoundDuration int       `json:"sound_duration,omitempty" yaml:"sound_duration"` // seconds
}

// AlertSpec is a user-authored alert rule.
//
// Alerts are one-shot: Active flips to false once the alert fires.
type AlertSpec struct {
	ID           string       `json:"id" yaml:"id"`
	Symbol       string       `json:"symbol" yaml:"symbol"`
	TargetType   TargetType   `json:"target_type" yaml:"target_type"`
	Target       float64      `json:"target" yaml:"target"`
	TargetValue  string       `json:"target_value" yaml:"target_value"`
	Condition    Condition    `json:"condition" yaml:"condition"`
	Confirmation Confirmation `json:"confirmation" yaml:"confirmation"`
	Interval     string       `json:"interval,omitempty" yaml:"interval"`
	DelaySeconds int          `json:"delay_seconds,omitempty" yaml:"delay_seconds"`
	DelayCandles int          `json:"delay_candles,omitempty" yaml:"delay_candles"`
	Actions      Actions      `json:"actions" yaml:"actions"`
	Active       bool         `json:"active" yaml:"-"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
}

// PriceTarget returns the numeric threshold of a price alert. Target wins;
// a numeric TargetValue is the fallback when Target is unset.
func (a *AlertSpec) PriceTarget() (float64, error) {
	if a.Target != 0 {
		return a.Target, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(a.TargetValue), 64)
	if err != nil {
		return 0, fmt.Errorf("alert %s: price target %q: %w", a.ID, a.TargetValue, ErrMalformedSpec)
	}
	return v, nil
}

// Validate checks the enum fields and the (Target, TargetValue) pairing.
// Indicator keys and drawing ids are resolved later, at evaluation time.
func (a *AlertSpec) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("alert %s: empty symbol: %w", a.ID, ErrMalformedSpec)
	}
	switch a.Condition {
	case CrossingUp, CrossingDown:
	default:
		return fmt.Errorf("alert %s: condition %q: %w", a.ID, a.Condition, ErrMalformedSpec)
	}
	switch a.Confirmation {
	case ConfirmImmediate, ConfirmTimeDelay, ConfirmCandleClose, ConfirmCandleDelay:
	default:
		return fmt.Errorf("alert %s: confirmation %q: %w", a.ID, a.Confirmation, ErrMalformedSpec)
	}
	if a.DelaySeconds < 0 || a.DelayCandles < 0 {
		return fmt.Errorf("alert %s: negative delay: %w", a.ID, ErrMalformedSpec)
	}
	if a.Confirmation.CandleBased() || a.TargetType == TargetIndicator {
		if _, err := IntervalDuration(a.Interval); err != nil {
			return fmt.Errorf("alert %s: %v: %w", a.ID, err, ErrMalformedSpec)
		}
	}

	if _, _, composite := SplitComposite(a.Symbol); composite {
		// Ratio symbols have live prices but no candle series.
		if a.Confirmation.CandleBased() {
			return fmt.Errorf("alert %s: %s confirmation on composite %s: %w", a.ID, a.Confirmation, a.Symbol, ErrMalformedSpec)
		}
		if a.TargetType == TargetIndicator && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.TargetValue)), "fib_") {
			return fmt.Errorf("alert %s: indicator %q on composite %s: %w", a.ID, a.TargetValue, a.Symbol, ErrMalformedSpec)
		}
	}

	switch a.TargetType {
	case TargetPrice:
		v, err := a.PriceTarget()
		if err != nil {
			return err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("alert %s: %w", a.ID, ErrInvalidNumeric)
		}
	case TargetIndicator, TargetDrawing:
		if strings.TrimSpace(a.TargetValue) == "" {
			return fmt.Errorf("alert %s: %s alert without target value: %w", a.ID, a.TargetType, ErrMalformedSpec)
		}
	default:
		return fmt.Errorf("alert %s: target type %q: %w", a.ID, a.TargetType, ErrMalformedSpec)
	}
	return nil
}

// HistoryRecord is the durable trace of a fired alert.
type HistoryRecord struct {
	AlertID   string    `json:"alert_id"`
	Symbol    string    `json:"symbol"`
	Message   string    `json:"message"`
	Target    float64   `json:"target"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxHistory is how many history records the alert store retains.
const MaxHistory = 50
