package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"alert-systemv1/internal/model"
)

// Message types on the wire.
const (
	TypeTick   = "tick"
	TypeCandle = "candle"
)

// envelope is one wire message. Fields of the tick or candle are inlined:
//
//	{"type":"tick","symbol":"BTCUSDT","market":"spot","price":64000.5,"change_percent":1.2,"ts":"..."}
//	{"type":"candle","symbol":"BTCUSDT","interval":"1m","ts":"...","close":64001,"closed":true}
type envelope struct {
	Type string `json:"type"`

	Symbol        string       `json:"symbol"`
	Market        model.Market `json:"market"`
	Price         float64      `json:"price"`
	ChangePercent float64      `json:"change_percent"`

	Interval string  `json:"interval"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Closed   bool    `json:"closed"`

	TS time.Time `json:"ts"`
}

// Decode parses one frame holding a single envelope or a JSON array of them.
// A missing ts is stamped with now. Invalid entries inside an array are
// skipped and reported through the returned error alongside the valid updates.
func Decode(raw []byte, now time.Time) ([]model.Update, error) {
	raw = bytes.TrimSpace(raw)
	var envs []envelope
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &envs); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
	} else {
		var e envelope
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		envs = []envelope{e}
	}

	out := make([]model.Update, 0, len(envs))
	var firstErr error
	for _, e := range envs {
		u, err := e.update(now)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, u)
	}
	return out, firstErr
}

func (e envelope) update(now time.Time) (model.Update, error) {
	if e.Symbol == "" {
		return model.Update{}, fmt.Errorf("%s message without symbol", e.Type)
	}
	ts := e.TS
	if ts.IsZero() {
		ts = now
	}

	switch e.Type {
	case TypeTick, "":
		switch e.Market {
		case "", model.MarketSpot, model.MarketPerp:
		default:
			return model.Update{}, fmt.Errorf("tick %s: unknown market %q", e.Symbol, e.Market)
		}
		if e.Price <= 0 {
			return model.Update{}, fmt.Errorf("tick %s: non-positive price %v", e.Symbol, e.Price)
		}
		return model.Update{Tick: &model.Tick{
			Symbol:        e.Symbol,
			Market:        e.Market,
			Price:         e.Price,
			ChangePercent: e.ChangePercent,
			TS:            ts.UTC(),
		}}, nil

	case TypeCandle:
		d, err := model.IntervalDuration(e.Interval)
		if err != nil {
			return model.Update{}, fmt.Errorf("candle %s: %w", e.Symbol, err)
		}
		if e.Close <= 0 {
			return model.Update{}, fmt.Errorf("candle %s: non-positive close %v", e.Symbol, e.Close)
		}
		// Untimed candles belong to the bucket forming at now.
		if e.TS.IsZero() {
			ts = now.Truncate(d)
		}
		return model.Update{Candle: &model.CandleUpdate{
			Symbol:   e.Symbol,
			Interval: e.Interval,
			TS:       ts.UTC(),
			Open:     e.Open,
			High:     e.High,
			Low:      e.Low,
			Close:    e.Close,
			Closed:   e.Closed,
		}}, nil
	}
	return model.Update{}, fmt.Errorf("unknown message type %q", e.Type)
}

// EncodeTick renders a tick in wire form.
func EncodeTick(t model.Tick) ([]byte, error) {
	return json.Marshal(envelope{
		Type:          TypeTick,
		Symbol:        t.Symbol,
		Market:        t.Market,
		Price:         t.Price,
		ChangePercent: t.ChangePercent,
		TS:            t.TS,
	})
}
