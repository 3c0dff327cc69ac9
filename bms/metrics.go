package bms

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

const namespace = "bms"

// Metrics counts domain transitions. The Manager feeds it the events of each
// successful operation synchronously, ahead of the queued notifiers.
type Metrics struct {
	rentalsStarted       prometheus.Counter
	rentalsCompleted     prometheus.Counter
	returnsRejected      prometheus.Counter
	reservationsCreated  prometheus.Counter
	reservationsExpired  prometheus.Counter
	reservationsConsumed prometheus.Counter
	rentalMinutes        prometheus.Histogram
	failures             *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rentalsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rentals_started_total",
			Help:      "Total number of rentals started",
		}),
		rentalsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rentals_completed_total",
			Help:      "Total number of rentals completed",
		}),
		returnsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_rejected_total",
			Help:      "Total number of returns refused because the destination station was full",
		}),
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Total number of reservations created",
		}),
		reservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_expired_total",
			Help:      "Total number of reservations that expired unused",
		}),
		reservationsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_consumed_total",
			Help:      "Total number of reservations turned into rentals",
		}),
		rentalMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rental_billed_minutes",
			Help:      "Billed minutes of completed rentals",
			Buckets:   []float64{1, 5, 10, 15, 30, 45, 60, 90, 120, 240},
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Total number of refused operations by error code",
		}, []string{"operation", "code"}),
	}
	reg.MustRegister(
		m.rentalsStarted, m.rentalsCompleted, m.returnsRejected,
		m.reservationsCreated, m.reservationsExpired, m.reservationsConsumed,
		m.rentalMinutes, m.failures,
	)
	return m
}

func (m *Metrics) Notify(_ context.Context, events []Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case EventRentalStarted:
			m.rentalsStarted.Inc()
		case EventRentalCompleted:
			m.rentalsCompleted.Inc()
			m.rentalMinutes.Observe(float64(ev.Rental.Minutes()))
		case EventReservationCreated:
			m.reservationsCreated.Inc()
		case EventReservationExpired:
			m.reservationsExpired.Inc()
		case EventReservationConsumed:
			m.reservationsConsumed.Inc()
		}
	}
	return nil
}

func (m *Metrics) observeFailure(op string, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		code = "internal"
	}
	m.failures.WithLabelValues(op, code).Inc()
	if op == "return" && errors.Is(err, station.ErrFull) {
		m.returnsRejected.Inc()
	}
}

// StationCollector exports per-station inventory gauges computed at scrape
// time.
type StationCollector struct {
	manager *Manager

	available *prometheus.Desc
	docked    *prometheus.Desc
	capacity  *prometheus.Desc
	severity  *prometheus.Desc
}

func NewStationCollector(m *Manager) *StationCollector {
	labels := []string{"station"}
	return &StationCollector{
		manager:   m,
		available: prometheus.NewDesc(namespace+"_station_bikes_available", "Bikes available for rental at the station", labels, nil),
		docked:    prometheus.NewDesc(namespace+"_station_bikes_docked", "Bikes docked at the station in any status", labels, nil),
		capacity:  prometheus.NewDesc(namespace+"_station_capacity", "Docks at the station", labels, nil),
		severity:  prometheus.NewDesc(namespace+"_station_rebalancing_severity", "0 when stocked, 1 on warning, 2 when critical", labels, nil),
	}
}

func (c *StationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.available
	ch <- c.docked
	ch <- c.capacity
	ch <- c.severity
}

func (c *StationCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.manager.Stations(context.Background()) {
		ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(st.BikesAvailable), st.ID)
		ch <- prometheus.MustNewConstMetric(c.docked, prometheus.GaugeValue, float64(len(st.BikeIDs)), st.ID)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity), st.ID)
		ch <- prometheus.MustNewConstMetric(c.severity, prometheus.GaugeValue, severityValue(st.Rebalancing.Severity), st.ID)
	}
}

func severityValue(s station.Severity) float64 {
	switch s {
	case station.SeverityWarning:
		return 1
	case station.SeverityCritical:
		return 2
	}
	return 0
}
