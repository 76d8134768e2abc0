// Package config reads process configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// TickServer configures cmd/tickserver, the simulated market data feed.
type TickServer struct {
	Addr       string
	Symbols    []Instrument
	Interval   time.Duration
	PerpSpread float64 // perp price offset from spot, as a fraction
}

// Instrument is one simulated symbol and its starting price.
type Instrument struct {
	Symbol string
	Price  float64
}

// LoadTickServer reads the tick server configuration.
//
//	TICK_SERVER_ADDR  listen address (default ":9001")
//	TICK_SYMBOLS      SYMBOL:PRICE pairs (default "BTCUSDT:65000,ETHUSDT:3200,SOLUSDT:150")
//	TICK_INTERVAL_MS  broadcast interval (default 250)
//	TICK_PERP_SPREAD  perp premium over spot (default 0.0005)
func LoadTickServer() TickServer {
	return TickServer{
		Addr:       GetEnv("TICK_SERVER_ADDR", ":9001"),
		Symbols:    ParseInstruments(GetEnv("TICK_SYMBOLS", "BTCUSDT:65000,ETHUSDT:3200,SOLUSDT:150")),
		Interval:   time.Duration(GetInt("TICK_INTERVAL_MS", 250)) * time.Millisecond,
		PerpSpread: GetFloat("TICK_PERP_SPREAD", 0.0005),
	}
}

// ParseInstruments parses "SYMBOL:PRICE,..." skipping invalid entries.
// A missing price defaults to 100.
func ParseInstruments(s string) []Instrument {
	var out []Instrument
	for _, part := range SplitList(s) {
		sym, priceStr, hasPrice := strings.Cut(part, ":")
		sym = strings.TrimSpace(sym)
		if sym == "" {
			log.Printf("[config] skipping invalid instrument: %q", part)
			continue
		}
		price := 100.0
		if hasPrice {
			p, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
			if err != nil || p <= 0 {
				log.Printf("[config] skipping invalid instrument price: %q", part)
				continue
			}
			price = p
		}
		out = append(out, Instrument{Symbol: sym, Price: price})
	}
	return out
}

// GetEnv returns the value of key, or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// GetInt returns key as an int. Unparseable or non-positive values fall back.
func GetInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// GetFloat returns key as a float64, falling back when unparseable.
func GetFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
