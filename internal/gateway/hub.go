// Package gateway streams fired alerts to browser clients over WebSocket and
// serves the alert list and trigger history over REST.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/notify"
)

// DefaultReplaySize is how many trigger envelopes are kept for reconnecting clients.
const DefaultReplaySize = 500

// Hub manages WebSocket clients and fans trigger events out to them.
// It is a notify.Notifier, registered with the dispatcher like any other sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer
	now     func() time.Time
}

// NewHub creates a hub keeping replaySize envelopes for gap backfill.
func NewHub(replaySize int) *Hub {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		now:     time.Now,
	}
}

func (h *Hub) Name() string { return "stream" }

// Send broadcasts ev to every client subscribed to its symbol. Having no
// clients connected is not an error; the event stays in the replay buffer.
func (h *Hub) Send(_ context.Context, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("stream marshal: %w", err)
	}
	h.broadcast(ev.Symbol, data)
	return nil
}

// broadcast wraps data in an envelope with the next seq and fans it out.
// Returns the seq assigned.
func (h *Hub) broadcast(symbol string, data []byte) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	seq := h.seq

	// Hand-craft envelope JSON
	buf := make([]byte, 0, len(symbol)+len(data)+96)
	buf = append(buf, `{"type":"trigger","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = h.now().UTC().AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')

	h.replay.Push(seq, symbol, buf)

	for client := range h.clients {
		if !client.matches(symbol) {
			continue
		}
		select {
		case client.send <- buf:
		default: // slow client, drop; it can backfill via /api/missed
		}
	}
	return seq
}

// HandleWSRequest registers conn, replays the envelopes after sinceSeq that
// match symbols (all symbols when empty) and starts its pumps.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, sinceSeq int64, symbols []string) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	client.setSymbols(symbols)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	// Replay under the lock so no broadcast slips between backfill and live.
	if sinceSeq >= 0 {
		for _, e := range h.replay.Since(sinceSeq) {
			if !client.matches(e.Symbol) {
				continue
			}
			select {
			case client.send <- e.Data:
			default:
			}
		}
	}
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// Missed returns the buffered envelopes with seq in [fromSeq, toSeq].
func (h *Hub) Missed(fromSeq, toSeq int64) [][]byte {
	entries := h.replay.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// Seq returns the last assigned sequence number.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
