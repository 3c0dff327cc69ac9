package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/bms"
)

const fleetYAML = `
pricing:
  rate_per_minute: 20
reservations:
  ttl: 10m
fleet:
  stations:
    - id: S1
      name: Central
      capacity: 3
      latitude: 53.35
      longitude: -6.26
      bikes:
        - id: B1
        - id: E1
          type: ebike
          battery: 90
    - id: S2
      name: Docklands
      type: private
      capacity: 2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bms.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, fleetYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Pricing.RatePerMinute != 20 {
		t.Errorf("expected rate 20, got %d", cfg.Pricing.RatePerMinute)
	}
	if cfg.Reservations.TTL != 10*time.Minute {
		t.Errorf("expected ttl 10m, got %s", cfg.Reservations.TTL)
	}
	if cfg.Reservations.SweepInterval != 30*time.Second {
		t.Errorf("expected default sweep interval 30s, got %s", cfg.Reservations.SweepInterval)
	}
	if cfg.Billing.UnlockFee != 100 || cfg.Billing.Currency != "eur" {
		t.Errorf("expected billing defaults, got %+v", cfg.Billing)
	}
	if len(cfg.Fleet.Stations) != 2 || len(cfg.Fleet.Stations[0].Bikes) != 2 {
		t.Fatalf("unexpected fleet %+v", cfg.Fleet)
	}
	if b := cfg.Fleet.Stations[0].Bikes[1]; b.Battery == nil || *b.Battery != 90 {
		t.Errorf("expected battery 90, got %+v", b)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("BMS_PRICING_RATE_PER_MINUTE", "35")
	t.Setenv("BMS_RESERVATIONS_TTL", "5m")

	cfg, err := Load(writeConfig(t, fleetYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pricing.RatePerMinute != 35 {
		t.Errorf("expected rate 35 from env, got %d", cfg.Pricing.RatePerMinute)
	}
	if cfg.Reservations.TTL != 5*time.Minute {
		t.Errorf("expected ttl 5m from env, got %s", cfg.Reservations.TTL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for an explicit missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
reservations:
  ttl: 0s
fleet:
  stations:
    - id: S1
      capacity: 1
      bikes:
        - id: B1
        - id: B1
          type: tandem
`))
	if err == nil {
		t.Fatalf("expected validation error, got %+v", cfg)
	}
	for _, want := range []string{
		"reservations.ttl must be positive",
		"2 bikes exceed capacity 1",
		"duplicate bike B1",
		"invalid bike type",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got:\n%v", want, err)
		}
	}
}

func TestSeed(t *testing.T) {
	cfg, err := Load(writeConfig(t, fleetYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := bms.New(bms.Config{})
	ctx := context.Background()

	if err := cfg.Fleet.Seed(ctx, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Seeding twice keeps the existing fleet.
	if err := cfg.Fleet.Seed(ctx, m); err != nil {
		t.Fatalf("unexpected error on reseed: %v", err)
	}

	st, err := m.Station(ctx, "S1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Capacity != 3 || len(st.BikeIDs) != 2 || st.Location.P.X != 53.35 {
		t.Errorf("unexpected station %+v", st)
	}
	e1, err := m.Bike(ctx, "E1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e1.Type != bike.EBike || *e1.BatteryLevel != 90 {
		t.Errorf("unexpected bike %+v", e1)
	}
	if got := len(m.Bikes(ctx)); got != 2 {
		t.Errorf("expected 2 bikes, got %d", got)
	}
}
