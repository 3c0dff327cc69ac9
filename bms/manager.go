// Package bms is the bike management domain engine: the registry of
// stations, bikes, reservations and rentals, and the flows that move bikes
// between them.
package bms

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/rental"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

// Config configures a Manager. The zero value is usable: wall clock, no
// notifiers, slog.Default, free rentals.
type Config struct {
	// RatePerMinute is charged for every started minute, in minor currency units.
	RatePerMinute int64
	Clock         func() time.Time
	Logger        *slog.Logger
	Notifiers     []Notifier
	Metrics       *Metrics
}

// Manager owns every station, bike, reservation and rental of the process.
// All state lives behind one mutex; each exported method runs to completion
// before the next one touches the model.
type Manager struct {
	mu  sync.Mutex
	out *outbox

	rate      int64
	clock     func() time.Time
	logger    *slog.Logger
	notifiers []Notifier
	metrics   *Metrics

	stations map[string]*station.Station
	bikes    map[string]*bike.Bike
	// location maps a docked bike to its station. Bikes on a trip are absent.
	location map[string]string
	// dockSeq orders bikes by arrival for persistence.
	dockSeq map[string]int64
	seq     int64

	rentals      []*rental.Rental
	rentalByID   map[uuid.UUID]*rental.Rental
	activeByUser map[string]*rental.Rental
	activeByBike map[string]*rental.Rental
}

func New(cfg Config) *Manager {
	m := &Manager{
		rate:      cfg.RatePerMinute,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		notifiers: cfg.Notifiers,
		metrics:   cfg.Metrics,
		out:       newOutbox(),
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.stations = make(map[string]*station.Station)
	m.bikes = make(map[string]*bike.Bike)
	m.location = make(map[string]string)
	m.dockSeq = make(map[string]int64)
	m.seq = 0
	m.rentals = nil
	m.rentalByID = make(map[uuid.UUID]*rental.Rental)
	m.activeByUser = make(map[string]*rental.Rental)
	m.activeByBike = make(map[string]*rental.Rental)
}

func (m *Manager) fail(op string, err error) error {
	if m.metrics != nil {
		m.metrics.observeFailure(op, err)
	}
	return err
}

func (m *Manager) dock(st *station.Station, b *bike.Bike) error {
	if err := st.ReturnBike(b); err != nil {
		return err
	}
	m.seq++
	m.location[b.ID] = st.ID
	m.dockSeq[b.ID] = m.seq
	return nil
}

func (m *Manager) undock(st *station.Station, id string) (*bike.Bike, error) {
	b, err := st.Undock(id)
	if err != nil {
		return nil, err
	}
	delete(m.location, id)
	delete(m.dockSeq, id)
	return b, nil
}

// expire sweeps the given stations at now and returns the resulting events.
func (m *Manager) expire(now time.Time, stations ...*station.Station) []Event {
	var events []Event
	for _, st := range stations {
		for _, r := range st.ExpireReservations(now) {
			events = append(events, reservationEvent(EventReservationExpired, r, now))
			if b, ok := m.bikes[r.BikeID]; ok {
				events = append(events, m.bikeEvent(EventBikeUpdated, b, now))
			}
		}
	}
	return events
}

func (m *Manager) allStations() []*station.Station {
	out := make([]*station.Station, 0, len(m.stations))
	for _, id := range m.sortedStationIDs() {
		out = append(out, m.stations[id])
	}
	return out
}

func (m *Manager) sortedStationIDs() []string {
	ids := make([]string, 0, len(m.stations))
	for id := range m.stations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// activeReservation finds the user's active reservation anywhere.
func (m *Manager) activeReservation(userID string) (*reservation.Reservation, bool) {
	for _, st := range m.stations {
		if r, ok := st.ReservationFor(userID); ok {
			return r, true
		}
	}
	return nil, false
}

// BikeState is a bike together with where it currently is.
type BikeState struct {
	bike.Bike
	// StationID is empty while the bike is on a trip.
	StationID string
}

// Station returns a copy of the station's current state.
func (m *Manager) Station(_ context.Context, id string) (station.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stations[id]
	if !ok {
		return station.Snapshot{}, ErrStationNotFound.Withf("station %s not found", id)
	}
	return st.Snapshot(), nil
}

// Stations returns every station ordered by id.
func (m *Manager) Stations(_ context.Context) []station.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]station.Snapshot, 0, len(m.stations))
	for _, st := range m.allStations() {
		out = append(out, st.Snapshot())
	}
	return out
}

// BikesAvailable counts the AVAILABLE bikes docked at a station.
func (m *Manager) BikesAvailable(_ context.Context, stationID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stations[stationID]
	if !ok {
		return 0, ErrStationNotFound.Withf("station %s not found", stationID)
	}
	return st.BikesAvailable(), nil
}

// IsFull reports whether every dock of the station is taken.
func (m *Manager) IsFull(_ context.Context, stationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stations[stationID]
	if !ok {
		return false, ErrStationNotFound.Withf("station %s not found", stationID)
	}
	return st.IsFull(), nil
}

// Rebalancing evaluates a single station.
func (m *Manager) Rebalancing(_ context.Context, stationID string) (station.Rebalancing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stations[stationID]
	if !ok {
		return station.Rebalancing{}, ErrStationNotFound.Withf("station %s not found", stationID)
	}
	return st.Rebalancing(), nil
}

// RebalancingAlerts lists the stations needing bikes, critical ones first.
func (m *Manager) RebalancingAlerts(_ context.Context) []station.Rebalancing {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []station.Rebalancing
	for _, st := range m.allStations() {
		if r := st.Rebalancing(); r.Needed {
			alerts = append(alerts, r)
		}
	}
	slices.SortStableFunc(alerts, func(a, b station.Rebalancing) int {
		if a.Severity == b.Severity {
			return strings.Compare(a.StationID, b.StationID)
		}
		if a.Severity == station.SeverityCritical {
			return -1
		}
		return 1
	})
	return alerts
}

func (m *Manager) Bike(_ context.Context, id string) (BikeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bikes[id]
	if !ok {
		return BikeState{}, ErrBikeNotFound.Withf("bike %s not found", id)
	}
	return BikeState{Bike: b.Clone(), StationID: m.location[id]}, nil
}

// Bikes returns every bike ordered by id.
func (m *Manager) Bikes(_ context.Context) []BikeState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]BikeState, 0, len(m.bikes))
	for _, b := range m.bikes {
		out = append(out, BikeState{Bike: b.Clone(), StationID: m.location[b.ID]})
	}
	slices.SortFunc(out, func(a, b BikeState) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *Manager) Rental(_ context.Context, id uuid.UUID) (rental.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rentalByID[id]
	if !ok {
		return rental.Rental{}, ErrRentalNotFound.Withf("rental %s not found", id)
	}
	return *r, nil
}

// Rentals returns the rentals of userID in start order, or all rentals
// when userID is empty.
func (m *Manager) Rentals(_ context.Context, userID string) []rental.Rental {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []rental.Rental
	for _, r := range m.rentals {
		if userID == "" || r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out
}

func (m *Manager) ActiveRental(_ context.Context, userID string) (rental.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.activeByUser[userID]
	if !ok {
		return rental.Rental{}, ErrRentalNotFound.Withf("no active rental for user %s", userID)
	}
	return *r, nil
}

// ActiveReservation returns the user's reservation. A reservation past its
// deadline is reported as absent even before the sweep has expired it.
func (m *Manager) ActiveReservation(_ context.Context, userID string) (reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.activeReservation(userID)
	if !ok || r.DueAt(m.clock()) {
		return reservation.Reservation{}, ErrReservationNotFound.Withf("no active reservation for user %s", userID)
	}
	return *r, nil
}
