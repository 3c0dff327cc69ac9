// Package config loads the service settings that are not process flags:
// pricing, reservation timing, billing and the initial fleet.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/viper"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

type Config struct {
	Pricing      PricingConfig     `mapstructure:"pricing"`
	Reservations ReservationConfig `mapstructure:"reservations"`
	Billing      BillingConfig     `mapstructure:"billing"`
	Fleet        FleetConfig       `mapstructure:"fleet"`
}

type PricingConfig struct {
	// RatePerMinute is in minor currency units.
	RatePerMinute int64 `mapstructure:"rate_per_minute"`
}

type ReservationConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type BillingConfig struct {
	Currency  string  `mapstructure:"currency"`
	UnlockFee int64   `mapstructure:"unlock_fee"`
	VATRate   float64 `mapstructure:"vat_rate"`
}

// FleetConfig seeds stations and bikes into an empty manager.
type FleetConfig struct {
	Stations []StationConfig `mapstructure:"stations"`
}

type StationConfig struct {
	ID           string       `mapstructure:"id"`
	Name         string       `mapstructure:"name"`
	Address      string       `mapstructure:"address"`
	OpeningHours string       `mapstructure:"opening_hours"`
	Type         string       `mapstructure:"type"`
	Capacity     int          `mapstructure:"capacity"`
	Latitude     float64      `mapstructure:"latitude"`
	Longitude    float64      `mapstructure:"longitude"`
	Bikes        []BikeConfig `mapstructure:"bikes"`
}

type BikeConfig struct {
	ID      string `mapstructure:"id"`
	Type    string `mapstructure:"type"`
	Battery *int   `mapstructure:"battery"`
}

// BikeType defaults to a standard bike.
func (b BikeConfig) BikeType() (bike.Type, error) {
	if b.Type == "" {
		return bike.Standard, nil
	}
	return bike.ParseType(strings.ToUpper(b.Type))
}

// Load reads the YAML file at path and overlays BMS_* environment
// variables. With an empty path, bms.yaml is looked up in . and ./configs
// and may be missing.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("pricing.rate_per_minute", 15)
	v.SetDefault("reservations.ttl", 15*time.Minute)
	v.SetDefault("reservations.sweep_interval", 30*time.Second)
	v.SetDefault("billing.currency", "eur")
	v.SetDefault("billing.unlock_fee", 100)
	v.SetDefault("billing.vat_rate", 13.5)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("bms")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// BMS_PRICING_RATE_PER_MINUTE → pricing.rate_per_minute
	v.SetEnvPrefix("BMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the manager cannot run without.
func (c *Config) Validate() error {
	var errs []string

	if c.Pricing.RatePerMinute < 0 {
		errs = append(errs, fmt.Sprintf("pricing.rate_per_minute must not be negative, got %d", c.Pricing.RatePerMinute))
	}
	if c.Reservations.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("reservations.ttl must be positive, got %s", c.Reservations.TTL))
	}
	if c.Reservations.SweepInterval <= 0 {
		errs = append(errs, fmt.Sprintf("reservations.sweep_interval must be positive, got %s", c.Reservations.SweepInterval))
	}
	if c.Billing.UnlockFee < 0 {
		errs = append(errs, "billing.unlock_fee must not be negative")
	}
	if c.Billing.VATRate < 0 || c.Billing.VATRate >= 100 {
		errs = append(errs, fmt.Sprintf("billing.vat_rate must be in [0, 100), got %v", c.Billing.VATRate))
	}

	stations := make(map[string]bool)
	bikes := make(map[string]bool)
	for i, s := range c.Fleet.Stations {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("fleet.stations[%d].id is required", i))
		} else if stations[s.ID] {
			errs = append(errs, fmt.Sprintf("fleet.stations[%d]: duplicate station %s", i, s.ID))
		}
		stations[s.ID] = true
		if s.Capacity <= 0 {
			errs = append(errs, fmt.Sprintf("fleet.stations[%d].capacity must be positive, got %d", i, s.Capacity))
		} else if len(s.Bikes) > s.Capacity {
			errs = append(errs, fmt.Sprintf("fleet.stations[%d]: %d bikes exceed capacity %d", i, len(s.Bikes), s.Capacity))
		}
		if _, err := station.ParseType(s.Type); err != nil {
			errs = append(errs, fmt.Sprintf("fleet.stations[%d]: %v", i, err))
		}
		for j, b := range s.Bikes {
			if b.ID == "" {
				errs = append(errs, fmt.Sprintf("fleet.stations[%d].bikes[%d].id is required", i, j))
			} else if bikes[b.ID] {
				errs = append(errs, fmt.Sprintf("fleet.stations[%d].bikes[%d]: duplicate bike %s", i, j, b.ID))
			}
			bikes[b.ID] = true
			if _, err := b.BikeType(); err != nil {
				errs = append(errs, fmt.Sprintf("fleet.stations[%d].bikes[%d]: %v", i, j, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Seed adds the configured fleet to m. Stations that already exist are
// skipped together with their bikes, so seeding a restored manager is a
// no-op.
func (f FleetConfig) Seed(ctx context.Context, m *bms.Manager) error {
	for _, s := range f.Stations {
		typ, err := station.ParseType(s.Type)
		if err != nil {
			return err
		}
		meta := station.Metadata{
			Name:         s.Name,
			Address:      s.Address,
			OpeningHours: s.OpeningHours,
			Type:         typ,
			Location: pgtype.Point{
				P:     pgtype.Vec2{X: s.Latitude, Y: s.Longitude},
				Valid: true,
			},
		}
		_, err = m.AddStation(ctx, s.ID, s.Capacity, meta)
		if errors.Is(err, bms.ErrDuplicateStation) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed station %s: %w", s.ID, err)
		}

		for _, b := range s.Bikes {
			typ, err := b.BikeType()
			if err != nil {
				return err
			}
			spec := bms.BikeSpec{ID: b.ID, Type: typ, BatteryLevel: b.Battery}
			if _, err := m.AddBike(ctx, s.ID, spec); err != nil {
				return fmt.Errorf("seed bike %s: %w", b.ID, err)
			}
		}
	}
	return nil
}
