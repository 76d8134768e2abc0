package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"alert-systemv1/internal/notify"
)

const defaultMaxBuffered = 1000

type bufferedEvent struct {
	symbol string
	data   []byte
}

// Publisher is a notify sink that PUBLISHes trigger events on the symbol's
// channel and keeps the latest one under a key. Writes go through a circuit
// breaker; while it is open events are buffered and flushed once it closes.
type Publisher struct {
	write func(ctx context.Context, symbol string, data []byte) error
	cb    *CircuitBreaker

	mu     sync.Mutex
	buffer []bufferedEvent
	maxBuf int

	// Callbacks
	OnBuffer func()          // called when an event is buffered
	OnFlush  func(count int) // called after buffered events were replayed
}

// NewPublisher creates a Publisher over c. maxBuffered bounds the events held
// while the breaker is open; the oldest is dropped first.
func NewPublisher(c *Client, cb *CircuitBreaker, maxBuffered int) *Publisher {
	return newPublisher(c.writeEvent, cb, maxBuffered)
}

func newPublisher(write func(context.Context, string, []byte) error, cb *CircuitBreaker, maxBuffered int) *Publisher {
	if maxBuffered <= 0 {
		maxBuffered = defaultMaxBuffered
	}
	p := &Publisher{
		write:  write,
		cb:     cb,
		maxBuf: maxBuffered,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		log.Printf("[redis] circuit %s -> %s", from, to)
		if to == StateClosed {
			go p.flush()
		}
	}
	return p
}

func (p *Publisher) Name() string { return "redis" }

// Send publishes ev. It returns nil when the event was buffered.
func (p *Publisher) Send(ctx context.Context, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.cb.Execute(func() error {
		return p.write(ctx, ev.Symbol, data)
	})
	if errors.Is(err, ErrCircuitOpen) {
		p.bufferEvent(ev.Symbol, data)
		return nil
	}
	return err
}

func (p *Publisher) bufferEvent(symbol string, data []byte) {
	p.mu.Lock()
	if len(p.buffer) >= p.maxBuf {
		p.buffer = p.buffer[1:]
	}
	p.buffer = append(p.buffer, bufferedEvent{symbol: symbol, data: data})
	p.mu.Unlock()

	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

func (p *Publisher) flush() {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	pending := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	flushed := 0
	for _, be := range pending {
		if err := p.write(ctx, be.symbol, be.data); err != nil {
			log.Printf("[redis] flush %s: %v", be.symbol, err)
			continue
		}
		flushed++
	}

	log.Printf("[redis] flushed %d/%d buffered events", flushed, len(pending))
	if p.OnFlush != nil {
		p.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered events.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// writeEvent sets the latest event and publishes it in one pipeline.
func (c *Client) writeEvent(ctx context.Context, symbol string, data []byte) error {
	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, c.LatestKey(symbol), data, latestEventTTL)
	pipe.Publish(ctx, c.Channel(symbol), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", symbol, err)
	}
	return nil
}
