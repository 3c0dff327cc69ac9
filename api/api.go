// Package api exposes the bike management system over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/customer"
	"github.com/aninnda/BikeShare-System-sub002/internal/auth0"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
	"github.com/aninnda/BikeShare-System-sub002/rental"
)

// Invoicer bills a completed rental.
type Invoicer interface {
	Invoice(ctx context.Context, r rental.Rental) (string, error)
}

type Customers interface {
	GetOrCreate(ctx context.Context, userID string) (customer.Customer, error)
	UpdateProfile(ctx context.Context, userID, email, name string) error
}

type Options struct {
	Logger *slog.Logger
	// Registry serves /metrics and receives the HTTP metrics.
	Registry *prometheus.Registry
	// Auth authenticates callers and must leave a middleware.Identity in
	// the context.
	Auth gin.HandlersChain

	MetricsUsername string
	MetricsPassword string

	ReservationTTL time.Duration

	// Optional collaborators. Without them rentals are not invoiced and
	// /me/sync is not served.
	Invoicer  Invoicer
	Customers Customers
	Auth0     auth0.Client
}

type API struct {
	r    *gin.Engine
	m    *bms.Manager
	opts Options

	// billing tracks invoices still being sent after their request ended.
	billing sync.WaitGroup
}

func New(m *bms.Manager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	a := &API{
		r:    gin.New(),
		m:    m,
		opts: opts,
	}

	a.r.Use(
		gin.Recovery(),
		middleware.Tracing(),
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Registry),
	)

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metrics := promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
	if opts.MetricsUsername != "" {
		a.r.GET("/metrics", gin.BasicAuth(gin.Accounts{opts.MetricsUsername: opts.MetricsPassword}), gin.WrapH(metrics))
	} else {
		a.r.GET("/metrics", gin.WrapH(metrics))
	}

	authed := a.r.Group("/")
	authed.Use(opts.Auth...)

	rider := middleware.RequireRole(middleware.RoleRider, middleware.RoleDual)
	operator := middleware.RequireRole(middleware.RoleOperator, middleware.RoleDual)

	authed.GET("/stations", a.stationsHandler)
	authed.GET("/stations/:id", a.stationHandler)
	authed.GET("/stations/:id/rebalancing", a.stationRebalancingHandler)
	authed.GET("/rebalancing", a.rebalancingAlertsHandler)
	authed.POST("/stations", operator, a.addStationHandler)
	authed.POST("/stations/:id/bikes", operator, a.addBikeHandler)

	authed.GET("/bikes", a.bikesHandler)
	authed.GET("/bikes/:id", a.bikeHandler)
	authed.DELETE("/bikes/:id", operator, a.removeBikeHandler)
	authed.PUT("/bikes/:id/maintenance", operator, a.maintenanceHandler)
	authed.PUT("/bikes/:id/battery", operator, a.batteryHandler)

	authed.POST("/stations/:id/reservations", rider, a.createReservationHandler)
	authed.GET("/reservations/current", rider, a.currentReservationHandler)

	authed.POST("/rentals", rider, a.startRentalHandler)
	authed.POST("/rentals/return", rider, a.returnRentalHandler)
	authed.GET("/rentals/current", a.currentRentalHandler)
	authed.GET("/rentals", a.rentalsHandler)
	authed.GET("/rentals/:id", a.rentalHandler)

	if opts.Customers != nil && opts.Auth0 != nil {
		authed.POST("/me/sync", a.syncProfileHandler)
	}

	return a
}

func (a *API) Router() *gin.Engine {
	return a.r
}

// Wait blocks until invoices started by returned rentals are sent.
func (a *API) Wait() {
	a.billing.Wait()
}
