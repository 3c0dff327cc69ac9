package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v84"
	"golang.org/x/sync/errgroup"

	"github.com/aninnda/BikeShare-System-sub002/api"
	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/customer"
	"github.com/aninnda/BikeShare-System-sub002/internal/auth0"
	"github.com/aninnda/BikeShare-System-sub002/internal/billing"
	"github.com/aninnda/BikeShare-System-sub002/internal/config"
	"github.com/aninnda/BikeShare-System-sub002/internal/events"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
	"github.com/aninnda/BikeShare-System-sub002/internal/o11y"
	"github.com/aninnda/BikeShare-System-sub002/internal/persist"
)

var cli = struct {
	Config string `name:"config" env:"BMS_CONFIG" help:"Path to the service and fleet YAML file." type:"path"`

	// Without a database the fleet lives in memory only.
	DatabaseURL string `name:"database-url" env:"DATABASE_URL"`
	Port        int    `name:"port" env:"PORT" default:"8080"`

	Auth0Domain string `name:"auth0-domain" env:"AUTH0_DOMAIN"`
	Audience    string `name:"audience" env:"AUDIENCE"`
	DevAuth     bool   `name:"dev-auth" env:"DEV_AUTH" help:"Trust X-User-ID and X-User-Role headers instead of JWTs."`

	MetricsUsername string `name:"metrics-username" env:"METRICS_USERNAME"`
	MetricsPassword string `name:"metrics-password" env:"METRICS_PASSWORD"`

	NATSURL      string  `name:"nats-url" env:"NATS_URL"`
	OTLPEndpoint string  `name:"otlp-endpoint" env:"OTLP_ENDPOINT"`
	TraceRatio   float64 `name:"trace-ratio" env:"TRACE_RATIO" default:"0.01"`
	Debug        bool    `name:"debug" env:"DEBUG"`

	StripeKey string `name:"stripe-key" env:"STRIPE_KEY"`
}{}

func main() {
	if err := run(); err != nil {
		log.Fatalf("unexpected error: %v", err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	kong.Parse(&cli)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	obs, cleanup, err := o11y.Setup(ctx, o11y.Options{
		ServiceName:  "bms",
		OTLPEndpoint: cli.OTLPEndpoint,
		SampleRatio:  cli.TraceRatio,
		LogLevel:     level,
	})
	defer cleanup()
	if err != nil {
		return err
	}
	logger := obs.Logger
	slog.SetDefault(logger)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	var (
		notifiers []bms.Notifier
		store     *persist.Store
		customers api.Customers
		billingDB billing.Customers
	)

	if cli.DatabaseURL != "" {
		db, err := sqlx.ConnectContext(ctx, "pgx", cli.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		store = persist.New(db)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		notifiers = append(notifiers, store)

		cr := customer.NewRepository(db)
		customers, billingDB = cr, cr
	} else {
		logger.Warn("no database configured, state is kept in memory")
		cr := customer.NewFakeRepository()
		customers, billingDB = cr, cr
	}

	if cli.NATSURL != "" {
		pub, err := events.NewPublisher(cli.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}

	m := bms.New(bms.Config{
		RatePerMinute: cfg.Pricing.RatePerMinute,
		Logger:        logger,
		Notifiers:     notifiers,
		Metrics:       bms.NewMetrics(obs.Registry),
	})
	obs.Registry.MustRegister(bms.NewStationCollector(m))

	if store != nil {
		if err := m.Load(ctx, store); err != nil {
			return err
		}
	}
	if err := cfg.Fleet.Seed(ctx, m); err != nil {
		return err
	}

	var auth gin.HandlersChain
	switch {
	case cli.DevAuth:
		logger.Warn("development auth enabled, identity headers are trusted")
		auth = gin.HandlersChain{middleware.HeaderIdentity()}
	case cli.Auth0Domain != "":
		auth, err = middleware.JWT(cli.Auth0Domain, cli.Audience)
		if err != nil {
			return err
		}
	default:
		return errors.New("either --auth0-domain or --dev-auth is required")
	}

	opts := api.Options{
		Logger:          logger,
		Registry:        obs.Registry,
		Auth:            auth,
		MetricsUsername: cli.MetricsUsername,
		MetricsPassword: cli.MetricsPassword,
		ReservationTTL:  cfg.Reservations.TTL,
		Customers:       customers,
	}
	if cli.Auth0Domain != "" {
		opts.Auth0 = auth0.NewHTTPClient(cli.Auth0Domain)
	}
	if cli.StripeKey != "" {
		stripe.Key = cli.StripeKey
		opts.Invoicer = billing.NewInvoicer(billingDB, billing.StripeAPI{}, billing.Config{
			Currency:  cfg.Billing.Currency,
			UnlockFee: cfg.Billing.UnlockFee,
			VATRate:   cfg.Billing.VATRate,
		}, logger)
	}

	if !cli.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	a := api.New(m, opts)

	serv := http.Server{
		Addr:              fmt.Sprintf(":%d", cli.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", serv.Addr)
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return m.RunExpiry(gctx, cfg.Reservations.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := serv.Shutdown(shutdownCtx)
		a.Wait()
		if ferr := m.Flush(shutdownCtx); ferr != nil {
			logger.Error("failed to flush pending events", "error", ferr)
		}
		return err
	})

	return g.Wait()
}
