// Package notify delivers triggered alerts to their side-effect channels.
//
// The Dispatcher turns a Trigger into an Event carrying the toast text, push
// notification payload, vibration pattern and sound selection, then fans it
// out to every configured Notifier (log, webhook, Telegram, Kafka, Redis).
package notify

import (
	"context"
	"log"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Send delivers an event. Returns error if delivery fails.
	Send(ctx context.Context, ev Event) error
}

// LogNotifier is a simple notifier that logs events (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, ev Event) error {
	log.Printf("[notify] [%s] %s: %s", ev.AlertID, ev.Symbol, ev.Message)
	return nil
}
