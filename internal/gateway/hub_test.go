package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alert-systemv1/internal/model"
	"alert-systemv1/internal/notify"
)

type fakeAlerts struct {
	alerts  []model.AlertSpec
	history []model.HistoryRecord
}

func (f *fakeAlerts) GetAlerts(_ context.Context, symbol string) ([]model.AlertSpec, error) {
	var out []model.AlertSpec
	for _, a := range f.alerts {
		if symbol == "" || a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out, nil
}
func (f *fakeAlerts) SaveAlert(context.Context, model.AlertSpec) error { return nil }
func (f *fakeAlerts) RemoveAlert(context.Context, string) error        { return nil }
func (f *fakeAlerts) GetAlertHistory(context.Context) ([]model.HistoryRecord, error) {
	return f.history, nil
}
func (f *fakeAlerts) AddAlertHistory(context.Context, model.HistoryRecord) error { return nil }

type envelope struct {
	Type string       `json:"type"`
	Seq  int64        `json:"seq"`
	Data notify.Event `json:"data"`
}

func newTestServer(t *testing.T, hub *Hub, store model.AlertStore) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, store)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope returns the first envelope of the next frame.
func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	first := strings.SplitN(string(msg), "\n", 2)[0]
	var env envelope
	if err := json.Unmarshal([]byte(first), &env); err != nil {
		t.Fatalf("decode %q: %v", first, err)
	}
	return env
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func event(alertID, symbol string) notify.Event {
	return notify.Event{ID: alertID + "-ev", AlertID: alertID, Symbol: symbol, Message: "crossed", Price: 101, Target: 100}
}

func TestHub_ReplaysOnConnect(t *testing.T) {
	hub := NewHub(10)
	srv := newTestServer(t, hub, &fakeAlerts{})

	hub.Send(context.Background(), event("a1", "BTCUSDT"))
	hub.Send(context.Background(), event("a2", "BTCUSDT"))

	conn := dial(t, srv, "?since_seq=1")
	env := readEnvelope(t, conn)
	if env.Type != "trigger" || env.Seq != 2 || env.Data.AlertID != "a2" {
		t.Errorf("replayed envelope = %+v, want seq 2 for a2", env)
	}
}

func TestHub_LiveFilteredBySymbol(t *testing.T) {
	hub := NewHub(10)
	srv := newTestServer(t, hub, &fakeAlerts{})

	conn := dial(t, srv, "?symbols=ethusdt")
	waitClients(t, hub, 1)

	hub.Send(context.Background(), event("btc", "BTCUSDT"))
	hub.Send(context.Background(), event("eth", "ETHUSDT"))

	env := readEnvelope(t, conn)
	if env.Data.AlertID != "eth" || env.Seq != 2 {
		t.Errorf("got %+v, want the ETHUSDT trigger at seq 2", env)
	}
}

func TestHub_SubscribeAndPing(t *testing.T) {
	hub := NewHub(10)
	srv := newTestServer(t, hub, &fakeAlerts{})

	conn := dial(t, srv, "")
	waitClients(t, hub, 1)

	conn.WriteJSON(map[string]interface{}{"type": "PING", "ping": 42})
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var pong struct {
		Type string `json:"type"`
		Ping int64  `json:"ping"`
	}
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != "PONG" || pong.Ping != 42 {
		t.Errorf("pong = %+v", pong)
	}

	conn.WriteJSON(map[string]interface{}{"type": "SUBSCRIBE", "symbols": []string{"SOLUSDT"}})
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ack struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != "SUBSCRIBED" {
		t.Fatalf("ack = %+v, err %v", ack, err)
	}

	hub.Send(context.Background(), event("btc", "BTCUSDT"))
	hub.Send(context.Background(), event("sol", "SOLUSDT"))
	if env := readEnvelope(t, conn); env.Data.AlertID != "sol" {
		t.Errorf("got %+v, want only the SOLUSDT trigger", env)
	}
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	hub := NewHub(10)
	srv := newTestServer(t, hub, &fakeAlerts{})

	conn := dial(t, srv, "")
	waitClients(t, hub, 1)
	conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting after the disconnect must not panic on the closed channel.
	hub.Send(context.Background(), event("a1", "BTCUSDT"))
}

func TestRoutes_REST(t *testing.T) {
	hub := NewHub(10)
	store := &fakeAlerts{
		alerts: []model.AlertSpec{
			{ID: "a1", Symbol: "BTCUSDT", Active: true},
			{ID: "a2", Symbol: "ETHUSDT", Active: true},
		},
		history: []model.HistoryRecord{{AlertID: "a0", Symbol: "BTCUSDT", Price: 99}},
	}
	srv := newTestServer(t, hub, store)
	for i := 0; i < 3; i++ {
		hub.Send(context.Background(), event("x", "BTCUSDT"))
	}

	var alerts []model.AlertSpec
	getJSON(t, srv.URL+"/api/alerts?symbol=ETHUSDT", &alerts)
	if len(alerts) != 1 || alerts[0].ID != "a2" {
		t.Errorf("alerts = %+v", alerts)
	}

	var hist []model.HistoryRecord
	getJSON(t, srv.URL+"/api/history", &hist)
	if len(hist) != 1 || hist[0].AlertID != "a0" {
		t.Errorf("history = %+v", hist)
	}

	var missed []envelope
	getJSON(t, srv.URL+"/api/missed?from=2&to=3", &missed)
	if len(missed) != 2 || missed[0].Seq != 2 {
		t.Errorf("missed = %+v", missed)
	}

	resp, err := http.Get(srv.URL + "/api/missed?from=5&to=1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", resp.StatusCode)
	}

	var stats map[string]int64
	getJSON(t, srv.URL+"/api/stream", &stats)
	if stats["seq"] != 3 {
		t.Errorf("stats = %v", stats)
	}
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
