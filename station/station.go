package station

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
)

var (
	ErrInvalidCapacity    = apperr.New(apperr.InvalidArgument, "INVALID_CAPACITY", "station capacity must be positive")
	ErrInvalidTTL         = apperr.New(apperr.InvalidArgument, "INVALID_TTL", "reservation ttl must be positive")
	ErrFull               = apperr.New(apperr.Conflict, "STATION_FULL", "station is full")
	ErrAlreadyDocked      = apperr.New(apperr.Conflict, "BIKE_ALREADY_DOCKED", "bike already docked")
	ErrNoBikeAvailable    = apperr.New(apperr.Conflict, "NO_BIKE_AVAILABLE", "no bike available")
	ErrUserHasReservation = apperr.New(apperr.Conflict, "USER_HAS_ACTIVE_RESERVATION", "user already holds a reservation")
	ErrNotDocked          = apperr.New(apperr.NotFound, "BIKE_NOT_DOCKED", "bike not docked at station")
	ErrNoReservation      = apperr.New(apperr.NotFound, "BIKE_NOT_RESERVED", "no active reservation for bike")
)

type Type int

const (
	Public Type = iota
	Private
)

func (t Type) String() string {
	return [...]string{"public", "private"}[t]
}

func ParseType(s string) (Type, error) {
	switch s {
	case "", "public":
		return Public, nil
	case "private":
		return Private, nil
	}
	return 0, fmt.Errorf("invalid station type %q", s)
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) Scan(i any) error {
	switch v := i.(type) {
	case string:
		p, err := ParseType(v)
		if err != nil {
			return err
		}
		*t = p
		return nil
	case []byte:
		return t.Scan(string(v))
	}
	return fmt.Errorf("station: cannot scan %T into Type", i)
}

func (t Type) Value() (driver.Value, error) {
	return t.String(), nil
}

// Metadata is the descriptive part of a station; the domain logic never reads it.
type Metadata struct {
	Name         string
	Address      string
	OpeningHours string `db:"opening_hours"`
	Location     pgtype.Point
	Type         Type
}

// Station is a capacity-bounded dock. It is not safe for concurrent use;
// bms.Manager serializes every access.
type Station struct {
	ID string
	Metadata

	capacity int
	// docked is kept in arrival order. Reservation picks from the front.
	docked       []*bike.Bike
	reservations map[string]*reservation.Reservation
}

func New(id string, capacity int, meta Metadata) (*Station, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity.Withf("station capacity must be positive, got %d", capacity)
	}
	return &Station{
		ID:           id,
		Metadata:     meta,
		capacity:     capacity,
		reservations: make(map[string]*reservation.Reservation),
	}, nil
}

func (s *Station) Capacity() int {
	return s.capacity
}

func (s *Station) IsFull() bool {
	return len(s.docked) >= s.capacity
}

func (s *Station) BikesDocked() int {
	return len(s.docked)
}

func (s *Station) FreeDocks() int {
	return s.capacity - len(s.docked)
}

func (s *Station) BikesAvailable() int {
	n := 0
	for _, b := range s.docked {
		if b.Status() == bike.StatusAvailable {
			n++
		}
	}
	return n
}

// Bike returns the docked bike with the given id.
func (s *Station) Bike(id string) (*bike.Bike, bool) {
	i := s.index(id)
	if i < 0 {
		return nil, false
	}
	return s.docked[i], true
}

// Docked returns the docked bikes in arrival order.
func (s *Station) Docked() []*bike.Bike {
	out := make([]*bike.Bike, len(s.docked))
	copy(out, s.docked)
	return out
}

func (s *Station) index(id string) int {
	for i, b := range s.docked {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// ReturnBike docks b and makes it AVAILABLE. A full station rejects the
// bike and nothing changes.
func (s *Station) ReturnBike(b *bike.Bike) error {
	if s.index(b.ID) >= 0 {
		return ErrAlreadyDocked.Withf("bike %s already docked at station %s", b.ID, s.ID)
	}
	if s.IsFull() {
		return ErrFull.Withf("station %s is full (%d/%d)", s.ID, len(s.docked), s.capacity)
	}
	if err := b.SetStatus(bike.StatusAvailable); err != nil {
		return err
	}
	s.docked = append(s.docked, b)
	return nil
}

// Undock removes the bike from the station. The caller decides its new status.
func (s *Station) Undock(id string) (*bike.Bike, error) {
	i := s.index(id)
	if i < 0 {
		return nil, ErrNotDocked.Withf("bike %s not docked at station %s", id, s.ID)
	}
	b := s.docked[i]
	s.docked = append(s.docked[:i], s.docked[i+1:]...)
	return b, nil
}

// CreateReservation holds the longest-docked AVAILABLE bike for userID.
func (s *Station) CreateReservation(userID string, ttl time.Duration, now time.Time) (*reservation.Reservation, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL.Withf("reservation ttl must be positive, got %s", ttl)
	}
	if r, ok := s.ReservationFor(userID); ok {
		return nil, ErrUserHasReservation.Withf("user %s already holds bike %s at station %s", userID, r.BikeID, s.ID)
	}

	var candidate *bike.Bike
	for _, b := range s.docked {
		if b.Status() == bike.StatusAvailable {
			candidate = b
			break
		}
	}
	if candidate == nil {
		return nil, ErrNoBikeAvailable.Withf("no bike available at station %s", s.ID)
	}

	if err := candidate.SetStatus(bike.StatusReserved); err != nil {
		return nil, err
	}
	r := reservation.New(userID, candidate.ID, s.ID, now, ttl)
	s.reservations[candidate.ID] = r
	return r, nil
}

// Reservation returns the active reservation on a docked bike.
func (s *Station) Reservation(bikeID string) (*reservation.Reservation, bool) {
	r, ok := s.reservations[bikeID]
	return r, ok
}

// ReservationFor returns the user's active reservation at this station.
func (s *Station) ReservationFor(userID string) (*reservation.Reservation, bool) {
	for _, r := range s.reservations {
		if r.UserID == userID {
			return r, true
		}
	}
	return nil, false
}

// Reservations returns the active reservations ordered by creation time.
func (s *Station) Reservations() []*reservation.Reservation {
	out := make([]*reservation.Reservation, 0, len(s.reservations))
	for _, b := range s.docked {
		if r, ok := s.reservations[b.ID]; ok {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b *reservation.Reservation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// ConsumeReservation marks the reservation on bikeID CONSUMED and drops it
// from the active set. The bike status is left to the caller.
func (s *Station) ConsumeReservation(bikeID string) (*reservation.Reservation, error) {
	r, ok := s.reservations[bikeID]
	if !ok {
		return nil, ErrNoReservation.Withf("no active reservation for bike %s at station %s", bikeID, s.ID)
	}
	if err := r.Consume(); err != nil {
		return nil, err
	}
	delete(s.reservations, bikeID)
	return r, nil
}

// RestoreReservation re-attaches an ACTIVE reservation loaded from a
// snapshot. The bike must be docked here.
func (s *Station) RestoreReservation(r *reservation.Reservation) error {
	b, ok := s.Bike(r.BikeID)
	if !ok {
		return ErrNotDocked.Withf("bike %s not docked at station %s", r.BikeID, s.ID)
	}
	if r.Status != reservation.StatusActive {
		return reservation.ErrNotActive.Withf("reservation %s is %s", r.ID, r.Status)
	}
	if err := b.SetStatus(bike.StatusReserved); err != nil {
		return err
	}
	s.reservations[r.BikeID] = r
	return nil
}

// ExpireReservations expires every active reservation whose deadline is at
// or before now and releases its bike. Calling it again with the same now
// changes nothing.
func (s *Station) ExpireReservations(now time.Time) []*reservation.Reservation {
	var expired []*reservation.Reservation
	for _, r := range s.Reservations() {
		if !r.DueAt(now) {
			continue
		}
		if err := r.Expire(); err != nil {
			panic(fmt.Sprintf("station %s: expiring active reservation %s: %v", s.ID, r.ID, err))
		}
		s.unhold(r)
		expired = append(expired, r)
	}
	return expired
}

// ReleaseReservation expires the reservation on bikeID before its deadline
// and makes the bike AVAILABLE again.
func (s *Station) ReleaseReservation(bikeID string) (*reservation.Reservation, error) {
	r, ok := s.reservations[bikeID]
	if !ok {
		return nil, ErrNoReservation.Withf("no active reservation for bike %s at station %s", bikeID, s.ID)
	}
	if err := r.Expire(); err != nil {
		return nil, err
	}
	s.unhold(r)
	return r, nil
}

func (s *Station) unhold(r *reservation.Reservation) {
	if b, ok := s.Bike(r.BikeID); ok && b.Status() == bike.StatusReserved {
		_ = b.SetStatus(bike.StatusAvailable)
	}
	delete(s.reservations, r.BikeID)
}
