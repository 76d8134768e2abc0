package alertsvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"alert-systemv1/internal/model"
	sqlitestore "alert-systemv1/internal/store/sqlite"
)

const seedYAML = `
drawings:
  - id: btc-trend
    symbol: BTCUSDT
    type: trendline
    points:
      - {time: 1000, price: 100}
      - {time: 2000, price: 200}
alerts:
  - id: above-100
    symbol: BTCUSDT
    target_type: price
    target: 100
    condition: crossing_up
  - id: trend-touch
    symbol: BTCUSDT
    target_type: drawing
    target_value: btc-trend
    condition: crossing_down
    confirmation: candle_close
    interval: 15m
    active: false
  - id: broken
    symbol: BTCUSDT
    target_type: price
    condition: sideways
    target: 1
`

func writeSeed(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func openStore(t *testing.T, dir string) *sqlitestore.Store {
	t.Helper()
	st, err := sqlitestore.New(sqlitestore.Config{DBPath: filepath.Join(dir, "alerts.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSeed_ApplyImportsValidEntries(t *testing.T) {
	dir := t.TempDir()
	st := openStore(t, dir)
	ctx := context.Background()

	sf, err := LoadSeed(writeSeed(t, dir, seedYAML))
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	created, err := sf.Apply(ctx, st)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2 (broken alert skipped)", created)
	}

	alerts, _ := st.GetAlerts(ctx, "BTCUSDT")
	byID := map[string]model.AlertSpec{}
	for _, a := range alerts {
		byID[a.ID] = a
	}
	if a := byID["above-100"]; !a.Active || a.Confirmation != model.ConfirmImmediate || a.CreatedAt.IsZero() {
		t.Errorf("above-100 = %+v, want active immediate with CreatedAt", a)
	}
	if a := byID["trend-touch"]; a.Active || a.Interval != "15m" {
		t.Errorf("trend-touch = %+v, want inactive 15m", a)
	}

	drawings, _ := st.GetDrawings(ctx, "BTCUSDT")
	if len(drawings) != 1 || len(drawings[0].Points) != 2 || drawings[0].Points[1].Price != 200 {
		t.Errorf("unexpected drawings %+v", drawings)
	}
}

func TestSeed_ApplyDoesNotRearmFiredAlerts(t *testing.T) {
	dir := t.TempDir()
	st := openStore(t, dir)
	ctx := context.Background()

	sf, err := LoadSeed(writeSeed(t, dir, seedYAML))
	if err != nil {
		t.Fatal(err)
	}
	sf.Apply(ctx, st)

	alerts, _ := st.GetAlerts(ctx, "")
	for _, a := range alerts {
		if a.ID == "above-100" {
			a.Active = false
			st.SaveAlert(ctx, a)
		}
	}

	created, err := sf.Apply(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("second apply created %d alerts, want 0", created)
	}
	alerts, _ = st.GetAlerts(ctx, "")
	for _, a := range alerts {
		if a.ID == "above-100" && a.Active {
			t.Error("fired alert was re-armed by seeding")
		}
	}
}

func TestLoadSeed_Errors(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	path := writeSeed(t, t.TempDir(), "alerts: [unterminated")
	if _, err := LoadSeed(path); err == nil {
		t.Error("expected parse error")
	}
}
