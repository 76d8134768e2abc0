package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"alert-systemv1/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "data", "alerts.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func priceAlert(symbol string, target float64) model.AlertSpec {
	return model.AlertSpec{
		Symbol:       symbol,
		TargetType:   model.TargetPrice,
		Target:       target,
		Condition:    model.CrossingUp,
		Confirmation: model.ConfirmImmediate,
		Actions:      model.Actions{Toast: true, Vibration: model.VibrationOnce},
		Active:       true,
	}
}

func TestAlerts_CRUD(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	a, err := s.CreateAlert(ctx, priceAlert("BTCUSDT", 65000))
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned: %+v", a)
	}
	b, err := s.CreateAlert(ctx, priceAlert("ETHUSDT", 3000))
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}

	all, err := s.GetAlerts(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAlerts: %v (%d)", err, len(all))
	}
	btc, _ := s.GetAlerts(ctx, "BTCUSDT")
	if len(btc) != 1 || btc[0].ID != a.ID || btc[0].Target != 65000 || !btc[0].Actions.Toast {
		t.Fatalf("unexpected BTC alerts %+v", btc)
	}

	a.Active = false
	if err := s.SaveAlert(ctx, a); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}
	btc, _ = s.GetAlerts(ctx, "BTCUSDT")
	if btc[0].Active {
		t.Error("update did not persist")
	}

	if err := s.RemoveAlert(ctx, b.ID); err != nil {
		t.Fatalf("RemoveAlert: %v", err)
	}
	if err := s.RemoveAlert(ctx, "missing"); err != nil {
		t.Fatalf("RemoveAlert unknown id: %v", err)
	}
	all, _ = s.GetAlerts(ctx, "")
	if len(all) != 1 {
		t.Errorf("expected 1 alert left, got %d", len(all))
	}
}

func TestCreateAlert_Validates(t *testing.T) {
	s := openTemp(t)
	bad := priceAlert("BTCUSDT", 1)
	bad.Condition = "sideways"
	if _, err := s.CreateAlert(context.Background(), bad); !errors.Is(err, model.ErrMalformedSpec) {
		t.Errorf("expected ErrMalformedSpec, got %v", err)
	}
	if err := s.SaveAlert(context.Background(), model.AlertSpec{}); !errors.Is(err, model.ErrMalformedSpec) {
		t.Errorf("expected ErrMalformedSpec for empty id, got %v", err)
	}
}

func TestHistory_BoundedNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < model.MaxHistory+7; i++ {
		err := s.AddAlertHistory(ctx, model.HistoryRecord{
			AlertID:   fmt.Sprintf("a%d", i),
			Symbol:    "BTCUSDT",
			Message:   "crossed",
			Target:    float64(i),
			Price:     float64(i) + 0.5,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddAlertHistory %d: %v", i, err)
		}
	}

	recs, err := s.GetAlertHistory(ctx)
	if err != nil {
		t.Fatalf("GetAlertHistory: %v", err)
	}
	if len(recs) != model.MaxHistory {
		t.Fatalf("expected %d records, got %d", model.MaxHistory, len(recs))
	}
	newest := model.MaxHistory + 6
	if recs[0].AlertID != fmt.Sprintf("a%d", newest) {
		t.Errorf("expected newest first, got %s", recs[0].AlertID)
	}
	if recs[len(recs)-1].AlertID != "a7" {
		t.Errorf("expected oldest retained a7, got %s", recs[len(recs)-1].AlertID)
	}
	if !recs[0].Timestamp.Equal(base.Add(time.Duration(newest) * time.Minute)) {
		t.Errorf("timestamp not preserved: %v", recs[0].Timestamp)
	}
}

func TestDrawings(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	d, err := s.SaveDrawing(ctx, model.DrawingSpec{
		Symbol: "BTCUSDT",
		Type:   model.DrawingTrendline,
		Points: []model.Point{{Time: 1000, Price: 100}, {Time: 2000, Price: 200}},
		Color:  "#ff0000",
	})
	if err != nil {
		t.Fatalf("SaveDrawing: %v", err)
	}
	if d.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if _, err := s.SaveDrawing(ctx, model.DrawingSpec{Symbol: "ETHUSDT", Type: model.DrawingHLine}); err != nil {
		t.Fatalf("SaveDrawing: %v", err)
	}

	got, err := s.GetDrawings(ctx, "BTCUSDT")
	if err != nil || len(got) != 1 {
		t.Fatalf("GetDrawings: %v (%d)", err, len(got))
	}
	if got[0].Type != model.DrawingTrendline || len(got[0].Points) != 2 || got[0].Points[1].Price != 200 {
		t.Errorf("unexpected drawing %+v", got[0])
	}

	if err := s.RemoveDrawing(ctx, d.ID); err != nil {
		t.Fatalf("RemoveDrawing: %v", err)
	}
	got, _ = s.GetDrawings(ctx, "BTCUSDT")
	if len(got) != 0 {
		t.Errorf("expected no drawings, got %d", len(got))
	}

	if _, err := s.SaveDrawing(ctx, model.DrawingSpec{Type: model.DrawingHLine}); !errors.Is(err, model.ErrMalformedSpec) {
		t.Errorf("expected ErrMalformedSpec, got %v", err)
	}
}

func TestCandles_RunAndReadSince(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ch := make(chan model.CandleUpdate, 10)
	for i := 0; i < 5; i++ {
		ch <- model.CandleUpdate{
			Symbol: "BTCUSDT", Interval: "1m",
			TS:   base.Add(time.Duration(i) * time.Minute),
			Open: 1, High: 2, Low: 0.5, Close: float64(100 + i),
			Closed: i != 4, // the forming candle is skipped
		}
	}
	close(ch)
	s.RunCandles(context.Background(), ch)

	got, err := s.ReadCandlesSince(context.Background(), base)
	if err != nil {
		t.Fatalf("ReadCandlesSince: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candles after base, got %d", len(got))
	}
	if got[0].Close != 101 || !got[0].Closed || !got[2].TS.Equal(base.Add(3*time.Minute)) {
		t.Errorf("unexpected candles %+v", got)
	}

	n, err := s.PruneCandles(context.Background(), base.Add(2*time.Minute))
	if err != nil || n != 2 {
		t.Errorf("PruneCandles: n=%d err=%v", n, err)
	}
}

func TestSnapshots(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	data, err := s.ReadLatestSnapshotJSON(ctx)
	if err != nil || data != nil {
		t.Fatalf("empty store: data=%s err=%v", data, err)
	}

	for i := 0; i < keepSnapshots+3; i++ {
		if err := s.SaveSnapshotJSON(ctx, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("SaveSnapshotJSON: %v", err)
		}
	}
	data, err = s.ReadLatestSnapshotJSON(ctx)
	if err != nil || string(data) != fmt.Sprintf(`{"n":%d}`, keepSnapshots+2) {
		t.Errorf("latest = %s err=%v", data, err)
	}

	var count int
	s.DB().QueryRow(`SELECT COUNT(*) FROM indicator_snapshots`).Scan(&count)
	if count != keepSnapshots {
		t.Errorf("expected %d snapshots kept, got %d", keepSnapshots, count)
	}
}
