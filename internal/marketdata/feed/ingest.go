// Package feed provides a WebSocket ingest client for the market data feed.
//
// It connects to a plain-JSON server (e.g. cmd/tickserver), decodes tick and
// candle envelopes and hands them to a Handler. Reconnects use exponential
// backoff.
package feed

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/model"
)

var errBadScheme = errors.New("feed url must use ws or wss")

// Config holds configuration for the feed ingest.
type Config struct {
	// URL of the WebSocket feed, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Handler receives decoded updates. It is always called from the ingest
// goroutine, one update at a time.
type Handler func(model.Update)

// Ingest streams updates from a WebSocket feed.
type Ingest struct {
	cfg Config

	// Optional hooks
	OnReconnect  func()
	OnParseError func(err error)
	OnConnState  func(connected bool)
}

// New creates a new Ingest. Returns an error if the URL is unparseable.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, &url.Error{Op: "parse", URL: cfg.URL, Err: errBadScheme}
	}
	return &Ingest{cfg: cfg}, nil
}

// Start connects to the feed and streams updates into h.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (ing *Ingest) Start(ctx context.Context, h Handler) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := ing.runOnce(ctx, h)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}
		if connected {
			delay = ing.cfg.ReconnectDelay
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (ing *Ingest) runOnce(ctx context.Context, h Handler) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", ing.cfg.URL)
	if ing.OnConnState != nil {
		ing.OnConnState(true)
		defer ing.OnConnState(false)
	}

	done := make(chan struct{})
	defer close(done)

	// Close the connection when ctx is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, err
		}

		updates, err := Decode(raw, time.Now())
		if err != nil {
			if ing.OnParseError != nil {
				ing.OnParseError(err)
			}
			log.Printf("[feed] parse error: %v (raw: %.200s)", err, raw)
		}
		for _, u := range updates {
			h(u)
		}
	}
}
