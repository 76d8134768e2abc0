package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers the stream and REST routes on mux.
//
//	/ws?since_seq=N&symbols=A,B   trigger stream (replays seq > N when given)
//	/api/alerts?symbol=S          alert list
//	/api/history                  trigger history, newest first
//	/api/missed?from=N&to=M       buffered envelopes for gap backfill
//	/api/stream                   client count and last seq
func RegisterRoutes(mux *http.ServeMux, hub *Hub, alerts model.AlertStore) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		since := int64(-1)
		if s := q.Get("since_seq"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, `{"error":"invalid since_seq"}`, http.StatusBadRequest)
				return
			}
			since = n
		}
		var symbols []string
		if s := q.Get("symbols"); s != "" {
			symbols = strings.Split(s, ",")
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleWSRequest(conn, since, symbols)
	})

	mux.HandleFunc("/api/alerts", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		list, err := alerts.GetAlerts(r.Context(), r.URL.Query().Get("symbol"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if list == nil {
			list = []model.AlertSpec{}
		}
		writeJSON(w, list)
	})

	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		hist, err := alerts.GetAlertHistory(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if hist == nil {
			hist = []model.HistoryRecord{}
		}
		writeJSON(w, hist)
	})

	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		q := r.URL.Query()
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if err1 != nil || err2 != nil || from > to {
			http.Error(w, `{"error":"from and to are required, from <= to"}`, http.StatusBadRequest)
			return
		}
		envelopes := hub.Missed(from, to)
		out := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			out[i] = e
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("/api/stream", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, map[string]int64{
			"clients": int64(hub.ClientCount()),
			"seq":     hub.Seq(),
		})
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// Server is the HTTP server for the stream and REST API.
type Server struct {
	hub  *Hub
	addr string
	srv  *http.Server
}

// NewServer creates a gateway server on addr.
func NewServer(addr string, hub *Hub, alerts model.AlertStore) *Server {
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, alerts)
	return &Server{
		hub:  hub,
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] listening on %s (WebSocket: ws://localhost%s/ws)", s.addr, s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop shuts the server down and disconnects stream clients.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
	s.hub.CloseAll()
}
