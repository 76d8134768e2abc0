package alertsvc

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"alert-systemv1/internal/model"
)

// SeedFile is the YAML layout of SEED_FILE.
//
//	drawings:
//	  - id: btc-trend
//	    symbol: BTCUSDT
//	    type: trendline
//	    points: [{time: 1717200000000, price: 67000}, {time: 1717286400000, price: 68500}]
//	alerts:
//	  - symbol: BTCUSDT
//	    target_type: drawing
//	    target_value: btc-trend
//	    condition: crossing_up
//	    confirmation: candle_close
//	    interval: 15m
type SeedFile struct {
	Drawings []model.DrawingSpec `yaml:"drawings"`
	Alerts   []SeedAlert         `yaml:"alerts"`
}

// SeedAlert is an alert entry. Active defaults to true.
type SeedAlert struct {
	model.AlertSpec `yaml:",inline"`
	Active          *bool `yaml:"active"`
}

// SeedStore is what seeding writes to.
type SeedStore interface {
	GetAlerts(ctx context.Context, symbol string) ([]model.AlertSpec, error)
	CreateAlert(ctx context.Context, a model.AlertSpec) (model.AlertSpec, error)
	SaveDrawing(ctx context.Context, d model.DrawingSpec) (model.DrawingSpec, error)
}

// LoadSeed reads and parses a seed file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &sf, nil
}

// Apply upserts the drawings and creates the alerts whose id is not stored
// yet, so a restart does not re-arm alerts that already fired. Invalid
// entries are logged and skipped. Returns the number of alerts created.
func (sf *SeedFile) Apply(ctx context.Context, st SeedStore) (int, error) {
	for _, d := range sf.Drawings {
		if _, err := st.SaveDrawing(ctx, d); err != nil {
			log.Printf("[seed] skipping drawing %s: %v", d.ID, err)
		}
	}

	existing, err := st.GetAlerts(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("seed: load alerts: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		known[a.ID] = true
	}

	created := 0
	for _, sa := range sf.Alerts {
		a := sa.AlertSpec
		if a.ID != "" && known[a.ID] {
			continue
		}
		a.Active = sa.Active == nil || *sa.Active
		if a.Confirmation == "" {
			a.Confirmation = model.ConfirmImmediate
		}
		stored, err := st.CreateAlert(ctx, a)
		if err != nil {
			log.Printf("[seed] skipping alert %s on %s: %v", a.ID, a.Symbol, err)
			continue
		}
		known[stored.ID] = true
		created++
	}
	log.Printf("[seed] %d drawings, %d/%d alerts imported", len(sf.Drawings), created, len(sf.Alerts))
	return created, nil
}
