package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"alert-systemv1/internal/model"
)

var at = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func trigger(actions model.Actions) Trigger {
	return Trigger{
		Alert: model.AlertSpec{
			ID:        "a1",
			Symbol:    "BTCUSDT",
			Condition: model.CrossingUp,
			Actions:   actions,
		},
		Target:  64000.5,
		Price:   64010.25,
		At:      at,
		TraceID: "trace-1",
	}
}

func TestBuildEvent_AllEffects(t *testing.T) {
	ev := BuildEvent("ev1", trigger(model.Actions{
		Toast:        true,
		Notification: true,
		Vibration:    model.VibrationContinuous,
		SoundID:      "chime",
		SoundRepeat:  3,
	}))

	want := "BTCUSDT crossed above 64000.5 (now 64010.25)"
	if ev.Message != want || ev.Toast != want {
		t.Errorf("message=%q toast=%q, want %q", ev.Message, ev.Toast, want)
	}
	if ev.Notification == nil || ev.Notification.Title != "BTCUSDT alert" || ev.Notification.Body != want {
		t.Errorf("unexpected notification %+v", ev.Notification)
	}
	if ev.Vibration == nil || !ev.Vibration.Repeat || len(ev.Vibration.PatternMS) != 2 {
		t.Errorf("continuous vibration should repeat pulses, got %+v", ev.Vibration)
	}
	if ev.Sound == nil || ev.Sound.ID != "chime" || ev.Sound.Repeat != 3 {
		t.Errorf("unexpected sound %+v", ev.Sound)
	}
	if ev.ID != "ev1" || ev.AlertID != "a1" || ev.TraceID != "trace-1" || !ev.TS.Equal(at) {
		t.Errorf("unexpected identity %+v", ev)
	}
}

func TestBuildEvent_Minimal(t *testing.T) {
	ev := BuildEvent("ev2", trigger(model.Actions{Vibration: model.VibrationOnce}))
	if ev.Toast != "" || ev.Notification != nil || ev.Sound != nil {
		t.Errorf("disabled effects should be empty: %+v", ev)
	}
	if ev.Vibration == nil || ev.Vibration.Repeat || len(ev.Vibration.PatternMS) != 1 {
		t.Errorf("once should be a single pulse, got %+v", ev.Vibration)
	}

	ev = BuildEvent("ev3", trigger(model.Actions{Vibration: model.VibrationNone, SoundID: "x"}))
	if ev.Vibration != nil {
		t.Errorf("none should not vibrate: %+v", ev.Vibration)
	}
	if ev.Sound == nil || ev.Sound.Repeat != 1 {
		t.Errorf("sound repeat should default to 1, got %+v", ev.Sound)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{
		64000.123:  "64000.12",
		1.23456789: "1.2346",
		0.00012345: "0.00012345",
		150:        "150",
		-2.5:       "-2.5",
	}
	for in, want := range cases {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatMessage_Down(t *testing.T) {
	got := FormatMessage("ETH/BTC", model.CrossingDown, 0.05, 0.0499)
	if got != "ETH/BTC crossed below 0.05 (now 0.0499)" {
		t.Errorf("got %q", got)
	}
}

type fakeSink struct {
	name string
	err  error

	mu  sync.Mutex
	got []Event
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Send(ctx context.Context, ev Event) error {
	f.mu.Lock()
	f.got = append(f.got, ev)
	f.mu.Unlock()
	return f.err
}

func TestDispatcher_JoinsErrors(t *testing.T) {
	ok := &fakeSink{name: "ok"}
	bad1 := &fakeSink{name: "bad1", err: errors.New("boom")}
	bad2 := &fakeSink{name: "bad2", err: errors.New("bang")}

	d := NewDispatcher(time.Second, bad1, ok, bad2)
	var failed []string
	d.OnSinkError = func(sink string, err error) { failed = append(failed, sink) }

	err := d.Dispatch(context.Background(), trigger(model.Actions{Toast: true}))
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !strings.Contains(err.Error(), "bad1: boom") || !strings.Contains(err.Error(), "bad2: bang") {
		t.Errorf("unexpected error %q", err)
	}
	if len(ok.got) != 1 {
		t.Errorf("healthy sink should still receive the event")
	}
	if len(failed) != 2 {
		t.Errorf("expected 2 sink failures, got %v", failed)
	}
	if ok.got[0].ID == "" || ok.got[0].ID != bad1.got[0].ID {
		t.Errorf("all sinks should see the same event id")
	}

	if names := d.Sinks(); len(names) != 3 || names[1] != "ok" {
		t.Errorf("unexpected sinks %v", names)
	}
}

func TestDispatcher_NoSinks(t *testing.T) {
	if err := NewDispatcher(0).Dispatch(context.Background(), trigger(model.Actions{})); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := BuildEvent("ev9", trigger(model.Actions{Toast: true}))
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.ID != "ev9" || got.AlertID != "a1" || got.Toast == "" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), BuildEvent("x", trigger(model.Actions{})))
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.baseURL = srv.URL
	if err := n.Send(context.Background(), BuildEvent("x", trigger(model.Actions{Notification: true}))); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %q", path)
	}
	if body["chat_id"] != "42" || body["parse_mode"] != "MarkdownV2" {
		t.Errorf("unexpected body %v", body)
	}
	if text, _ := body["text"].(string); !strings.Contains(text, `64000\.5`) {
		t.Errorf("text not escaped: %q", text)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}
func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w, topic: "alerts.triggered"}

	ev := BuildEvent("ev7", trigger(model.Actions{}))
	if err := k.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "a1" {
		t.Errorf("expected key a1, got %q", m.Key)
	}
	var decoded Event
	if err := json.Unmarshal(m.Value, &decoded); err != nil || decoded.ID != "ev7" {
		t.Errorf("unexpected value %s (%v)", m.Value, err)
	}

	w.err = errors.New("leader not available")
	if err := k.Send(context.Background(), ev); err == nil {
		t.Error("expected write error")
	}
}

func TestNewKafkaNotifier_Validates(t *testing.T) {
	if _, err := NewKafkaNotifier(nil, "t"); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaNotifier([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected error without topic")
	}
}
