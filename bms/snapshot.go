package bms

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/rental"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

// Snapshot is the full entity set of a Manager. Bikes carry their station
// and dock position; only ACTIVE reservations are included.
type Snapshot struct {
	Stations     []station.Record
	Bikes        []bike.Record
	Reservations []reservation.Reservation
	Rentals      []rental.Rental
}

// Store reads back what the notifiers persisted.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Snapshot copies the current state.
func (m *Manager) Snapshot(_ context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var snap Snapshot
	for _, st := range m.allStations() {
		snap.Stations = append(snap.Stations, st.Record())
		for _, r := range st.Reservations() {
			snap.Reservations = append(snap.Reservations, *r)
		}
	}
	for _, b := range m.bikes {
		snap.Bikes = append(snap.Bikes, bike.ToRecord(b, m.location[b.ID], int(m.dockSeq[b.ID])))
	}
	slices.SortFunc(snap.Bikes, func(a, b bike.Record) int { return strings.Compare(a.ID, b.ID) })
	for _, r := range m.rentals {
		snap.Rentals = append(snap.Rentals, *r)
	}
	return snap
}

// Load replaces the state with the snapshot read from store.
func (m *Manager) Load(ctx context.Context, store Store) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	return m.Restore(ctx, snap)
}

// Restore validates snap and replaces the whole state with it. On error the
// current state is left untouched. No events are emitted.
func (m *Manager) Restore(ctx context.Context, snap Snapshot) error {
	next := &Manager{}
	next.reset()
	if err := next.restore(snap); err != nil {
		return err
	}

	m.mu.Lock()
	m.stations = next.stations
	m.bikes = next.bikes
	m.location = next.location
	m.dockSeq = next.dockSeq
	m.seq = next.seq
	m.rentals = next.rentals
	m.rentalByID = next.rentalByID
	m.activeByUser = next.activeByUser
	m.activeByBike = next.activeByBike
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "state restored",
		"stations", len(snap.Stations), "bikes", len(snap.Bikes),
		"reservations", len(snap.Reservations), "rentals", len(snap.Rentals))
	return nil
}

func (m *Manager) restore(snap Snapshot) error {
	for _, rec := range snap.Stations {
		if _, ok := m.stations[rec.ID]; ok {
			return ErrInvalidSnapshot.Withf("duplicate station %s", rec.ID)
		}
		st, err := station.New(rec.ID, rec.Capacity, rec.Metadata)
		if err != nil {
			return ErrInvalidSnapshot.Withf("station %s: %v", rec.ID, err)
		}
		m.stations[rec.ID] = st
	}

	// Docking in persisted position order rebuilds each station's arrival order.
	bikes := slices.Clone(snap.Bikes)
	slices.SortStableFunc(bikes, func(a, b bike.Record) int {
		return cmp.Or(
			cmp.Compare(a.DockPosition.Int32, b.DockPosition.Int32),
			strings.Compare(a.ID, b.ID),
		)
	})
	for _, rec := range bikes {
		if _, ok := m.bikes[rec.ID]; ok {
			return ErrInvalidSnapshot.Withf("duplicate bike %s", rec.ID)
		}
		b, err := rec.Bike()
		if err != nil {
			return ErrInvalidSnapshot.Withf("bike %s: %v", rec.ID, err)
		}
		m.bikes[rec.ID] = b
		if !rec.StationID.Valid {
			continue
		}
		st, ok := m.stations[rec.StationID.String]
		if !ok {
			return ErrInvalidSnapshot.Withf("bike %s docked at unknown station %s", rec.ID, rec.StationID.String)
		}
		if rec.Status == bike.StatusOnTrip {
			return ErrInvalidSnapshot.Withf("bike %s is %s but docked at station %s", rec.ID, rec.Status, st.ID)
		}
		if err := m.dock(st, b); err != nil {
			return ErrInvalidSnapshot.Withf("bike %s: %v", rec.ID, err)
		}
		// Docking makes the bike AVAILABLE; reservations re-reserve below.
		if rec.Status == bike.StatusMaintenance {
			_ = b.SetStatus(bike.StatusMaintenance)
		}
	}

	users := make(map[string]bool)
	for i := range snap.Reservations {
		r := snap.Reservations[i]
		if users[r.UserID] {
			return ErrInvalidSnapshot.Withf("user %s holds more than one reservation", r.UserID)
		}
		st, ok := m.stations[r.StationID]
		if !ok {
			return ErrInvalidSnapshot.Withf("reservation %s at unknown station %s", r.ID, r.StationID)
		}
		if _, taken := st.Reservation(r.BikeID); taken {
			return ErrInvalidSnapshot.Withf("bike %s reserved twice", r.BikeID)
		}
		if b, ok := st.Bike(r.BikeID); !ok || b.Status() != bike.StatusAvailable {
			return ErrInvalidSnapshot.Withf("reservation %s on bike %s that is not available at station %s", r.ID, r.BikeID, st.ID)
		}
		if err := st.RestoreReservation(&r); err != nil {
			return ErrInvalidSnapshot.Withf("reservation %s: %v", r.ID, err)
		}
		users[r.UserID] = true
	}

	rentals := slices.Clone(snap.Rentals)
	slices.SortStableFunc(rentals, func(a, b rental.Rental) int { return a.StartTime.Compare(b.StartTime) })
	for i := range rentals {
		r := &rentals[i]
		if _, ok := m.rentalByID[r.ID]; ok {
			return ErrInvalidSnapshot.Withf("duplicate rental %s", r.ID)
		}
		if r.Status == rental.StatusActive {
			b, ok := m.bikes[r.BikeID]
			if !ok {
				return ErrInvalidSnapshot.Withf("rental %s of unknown bike %s", r.ID, r.BikeID)
			}
			if _, docked := m.location[r.BikeID]; docked || b.Status() != bike.StatusOnTrip {
				return ErrInvalidSnapshot.Withf("rental %s is active but bike %s is %s", r.ID, r.BikeID, b.Status())
			}
			if _, ok := m.activeByUser[r.UserID]; ok {
				return ErrInvalidSnapshot.Withf("user %s has more than one active rental", r.UserID)
			}
			if _, ok := m.activeByBike[r.BikeID]; ok {
				return ErrInvalidSnapshot.Withf("bike %s has more than one active rental", r.BikeID)
			}
			m.activeByUser[r.UserID] = r
			m.activeByBike[r.BikeID] = r
		}
		m.rentals = append(m.rentals, r)
		m.rentalByID[r.ID] = r
	}

	for id := range m.bikes {
		if _, docked := m.location[id]; !docked {
			if _, riding := m.activeByBike[id]; !riding {
				return ErrInvalidSnapshot.Withf("bike %s is neither docked nor on an active rental", id)
			}
		}
	}
	return nil
}
