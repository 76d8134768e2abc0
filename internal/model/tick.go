package model

import (
	"strings"
	"time"
)

// Market identifies which venue a tick was quoted on.
type Market string

const (
	MarketSpot Market = "spot"
	MarketPerp Market = "perp"
)

// Tick is a single price snapshot from the market data feed.
type Tick struct {
	Symbol        string    `json:"symbol"`
	Market        Market    `json:"market"`         // spot or perp; empty means spot
	Price         float64   `json:"price"`          // last traded price
	ChangePercent float64   `json:"change_percent"` // 24h change
	TS            time.Time `json:"ts"`
}

// Key returns "market:symbol".
func (t *Tick) Key() string {
	m := t.Market
	if m == "" {
		m = MarketSpot
	}
	return string(m) + ":" + t.Symbol
}

// SplitComposite splits a composite symbol "BASE/QUOTE" into its legs.
// ok is false for plain symbols.
func SplitComposite(symbol string) (base, quote string, ok bool) {
	i := strings.IndexByte(symbol, '/')
	if i <= 0 || i == len(symbol)-1 {
		return "", "", false
	}
	return symbol[:i], symbol[i+1:], true
}
