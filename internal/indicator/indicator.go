// Package indicator computes technical indicator values from closing-price
// histories.
//
// Every calculation takes closes ordered oldest to newest and returns NaN when
// there is not enough data. NaN means "not yet evaluable", never an error.
package indicator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownKey = errors.New("unknown indicator key")

// Kind identifies an indicator family.
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
	KindRSI Kind = "rsi"
	KindFib Kind = "fib"
)

// Key is a parsed indicator reference such as "sma20" or "fib_100_0_0.618".
type Key struct {
	Kind   Kind
	Period int

	// Fib only.
	High, Low, Ratio float64
}

// ParseKey parses sma{n}, ema{n}, rsi{n} and fib_{high}_{low}_{ratio}.
// Matching is case-insensitive.
func ParseKey(s string) (Key, error) {
	raw := strings.ToLower(strings.TrimSpace(s))

	if strings.HasPrefix(raw, "fib_") {
		parts := strings.Split(raw, "_")
		if len(parts) != 4 {
			return Key{}, fmt.Errorf("%q: %w", s, ErrUnknownKey)
		}
		var vals [3]float64
		for i, p := range parts[1:] {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return Key{}, fmt.Errorf("%q: %w", s, ErrUnknownKey)
			}
			vals[i] = v
		}
		return Key{Kind: KindFib, High: vals[0], Low: vals[1], Ratio: vals[2]}, nil
	}

	for _, k := range []Kind{KindSMA, KindEMA, KindRSI} {
		if !strings.HasPrefix(raw, string(k)) {
			continue
		}
		n, err := strconv.Atoi(raw[len(k):])
		if err != nil || n <= 0 {
			return Key{}, fmt.Errorf("%q: bad period: %w", s, ErrUnknownKey)
		}
		return Key{Kind: k, Period: n}, nil
	}
	return Key{}, fmt.Errorf("%q: %w", s, ErrUnknownKey)
}

// String returns the canonical form of the key.
func (k Key) String() string {
	if k.Kind == KindFib {
		f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
		return "fib_" + f(k.High) + "_" + f(k.Low) + "_" + f(k.Ratio)
	}
	return string(k.Kind) + strconv.Itoa(k.Period)
}

// Static reports whether the key is independent of price history.
func (k Key) Static() bool { return k.Kind == KindFib }

// IsThreshold reports whether the indicator output is compared against a user
// threshold (RSI) rather than being the target itself (SMA, EMA, Fib).
func (k Key) IsThreshold() bool { return k.Kind == KindRSI }

// Compute evaluates the key over closes.
func (k Key) Compute(closes []float64) float64 {
	switch k.Kind {
	case KindSMA:
		return SMA(closes, k.Period)
	case KindEMA:
		return EMA(closes, k.Period)
	case KindRSI:
		return RSI(closes, k.Period)
	case KindFib:
		return FibLevel(k.High, k.Low, k.Ratio)
	}
	return nan
}
