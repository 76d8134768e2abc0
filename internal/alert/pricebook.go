package alert

import (
	"math"
	"time"

	"alert-systemv1/internal/model"
)

// Quote is the last tick seen for one symbol on one market.
type Quote struct {
	Price         float64
	ChangePercent float64
	TS            time.Time
}

// PriceBook keeps the latest spot and perpetual quotes per symbol.
// It is owned by the evaluation goroutine.
type PriceBook struct {
	spot map[string]Quote
	perp map[string]Quote
}

// NewPriceBook creates an empty book.
func NewPriceBook() *PriceBook {
	return &PriceBook{
		spot: make(map[string]Quote, 64),
		perp: make(map[string]Quote, 64),
	}
}

// Update records t. Non-positive or non-finite prices are ignored, as are
// ticks older than the quote already held.
func (b *PriceBook) Update(t model.Tick) bool {
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return false
	}
	book := b.spot
	if t.Market == model.MarketPerp {
		book = b.perp
	}
	if q, ok := book[t.Symbol]; ok && t.TS.Before(q.TS) {
		return false
	}
	book[t.Symbol] = Quote{Price: t.Price, ChangePercent: t.ChangePercent, TS: t.TS}
	return true
}

// Price returns the current price of symbol. A composite "BASE/QUOTE" symbol
// is priced as base/quote; each leg prefers spot and falls back to perp on
// its own, so one spot leg and one perp leg is a valid pair.
func (b *PriceBook) Price(symbol string) (float64, bool) {
	base, quote, composite := model.SplitComposite(symbol)
	if !composite {
		return b.leg(symbol)
	}
	bp, ok := b.leg(base)
	if !ok {
		return 0, false
	}
	qp, ok := b.leg(quote)
	if !ok {
		return 0, false
	}
	return bp / qp, true
}

func (b *PriceBook) leg(symbol string) (float64, bool) {
	if q, ok := b.spot[symbol]; ok {
		return q.Price, true
	}
	if q, ok := b.perp[symbol]; ok {
		return q.Price, true
	}
	return 0, false
}

// Len returns the number of symbols with at least one quote.
func (b *PriceBook) Len() int {
	n := len(b.spot)
	for s := range b.perp {
		if _, ok := b.spot[s]; !ok {
			n++
		}
	}
	return n
}
