// Command tickserver is a demo WebSocket market data server.
// Broadcasts simulated spot and perp ticks for running alertengine without an
// exchange connection.
//
// Messages use the feed envelope:
//
//	{"type":"tick","symbol":"BTCUSDT","market":"spot","price":65012.5,"ts":"..."}
//
// Config (env vars): see config.LoadTickServer.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/config"
	"alert-systemv1/internal/marketdata/feed"
	"alert-systemv1/internal/model"
)

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop tick
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickserver] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Tick generator ──────────────────────────────────────────────────────────

// walkPrice applies a small random walk (±0.1%).
func walkPrice(rng *rand.Rand, price float64) float64 {
	next := price * (1 + (rng.Float64()*0.2-0.1)/100.0)
	if next < 0.0001 {
		next = 0.0001
	}
	return next
}

func runGenerator(h *hub, cfg config.TickServer) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	prices := make([]float64, len(cfg.Symbols))
	for i, inst := range cfg.Symbols {
		prices[i] = inst.Price
	}

	for now := range ticker.C {
		for i, inst := range cfg.Symbols {
			prices[i] = walkPrice(rng, prices[i])
			send(h, model.Tick{Symbol: inst.Symbol, Market: model.MarketSpot, Price: prices[i], TS: now.UTC()})
			send(h, model.Tick{Symbol: inst.Symbol, Market: model.MarketPerp, Price: prices[i] * (1 + cfg.PerpSpread), TS: now.UTC()})
		}
	}
}

func send(h *hub, t model.Tick) {
	b, err := feed.EncodeTick(t)
	if err != nil {
		return
	}
	h.broadcast(b)
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickserver] starting demo tick server...")

	cfg := config.LoadTickServer()
	if len(cfg.Symbols) == 0 {
		log.Fatalf("[tickserver] no instruments configured via TICK_SYMBOLS")
	}
	log.Printf("[tickserver] instruments: %+v", cfg.Symbols)
	log.Printf("[tickserver] broadcast interval: %s, perp spread: %.4f", cfg.Interval, cfg.PerpSpread)

	h := newHub()
	go runGenerator(h, cfg)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s  (WebSocket: ws://localhost%s/ws)", cfg.Addr, cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}
