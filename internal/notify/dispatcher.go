package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Dispatcher fans a Trigger out to every Notifier.
type Dispatcher struct {
	sinks   []Notifier
	timeout time.Duration

	// OnSinkError is called once per failed sink (optional).
	OnSinkError func(sink string, err error)
}

// NewDispatcher creates a dispatcher over sinks. Each Send is bounded by
// timeout (10s when zero).
func NewDispatcher(timeout time.Duration, sinks ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sinks: sinks, timeout: timeout}
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch renders t and sends it to every sink. A failing sink does not stop
// the others; all failures are joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, t Trigger) error {
	ev := BuildEvent(uuid.NewString(), t)

	var errs []error
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Send(sctx, ev)
		cancel()
		if err != nil {
			if d.OnSinkError != nil {
				d.OnSinkError(s.Name(), err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
