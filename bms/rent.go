package bms

import (
	"context"
	"time"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/rental"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
)

// RentBike takes bikeID out of stationID for userID. The bike must be docked
// there and either AVAILABLE or RESERVED by userID; a reservation held by the
// user is consumed. A reservation the user holds on any other bike is
// released: it ends EXPIRED and that bike becomes AVAILABLE again.
func (m *Manager) RentBike(ctx context.Context, userID, stationID, bikeID string) (rental.Rental, error) {
	if userID == "" || stationID == "" || bikeID == "" {
		return rental.Rental{}, m.fail("rent", ErrInvalidID.Withf("user, station and bike ids must not be empty"))
	}

	m.mu.Lock()
	if r, ok := m.activeByUser[userID]; ok {
		m.mu.Unlock()
		return rental.Rental{}, m.fail("rent", ErrUserHasActiveRental.Withf("user %s is already riding bike %s", userID, r.BikeID))
	}
	st, ok := m.stations[stationID]
	if !ok {
		m.mu.Unlock()
		return rental.Rental{}, m.fail("rent", ErrStationNotFound.Withf("station %s not found", stationID))
	}
	b, ok := m.bikes[bikeID]
	if !ok {
		m.mu.Unlock()
		return rental.Rental{}, m.fail("rent", ErrBikeNotFound.Withf("bike %s not found", bikeID))
	}

	now := m.clock()
	// A reservation past its deadline must not block or authorize the
	// rental. The sweep stands even when the rental is refused.
	events := m.expire(now, st)

	if _, docked := st.Bike(bikeID); !docked {
		m.release(ctx, events)
		return rental.Rental{}, m.fail("rent", ErrBikeNotAvailable.Withf("bike %s is not docked at station %s", bikeID, stationID))
	}
	res, reserved := st.Reservation(bikeID)
	status := b.Status()
	switch {
	case reserved && res.UserID != userID:
		m.release(ctx, events)
		return rental.Rental{}, m.fail("rent", ErrBikeNotAvailable.Withf("bike %s is reserved by another user", bikeID))
	case !reserved && status != bike.StatusAvailable:
		m.release(ctx, events)
		return rental.Rental{}, m.fail("rent", ErrBikeNotAvailable.Withf("bike %s is %s", bikeID, status))
	}

	if reserved {
		if _, err := st.ConsumeReservation(bikeID); err != nil {
			m.mu.Unlock()
			return rental.Rental{}, m.fail("rent", err)
		}
		events = append(events, reservationEvent(EventReservationConsumed, res, now))
	} else if held, ok := m.activeReservation(userID); ok {
		events = append(events, m.releaseReservation(ctx, held, now)...)
	}
	if _, err := m.undock(st, bikeID); err != nil {
		// Unreachable: the bike was found docked above under the same lock.
		panic(err)
	}
	if err := b.SetStatus(bike.StatusOnTrip); err != nil {
		panic(err)
	}

	r := rental.Start(userID, bikeID, stationID, now)
	m.rentals = append(m.rentals, r)
	m.rentalByID[r.ID] = r
	m.activeByUser[userID] = r
	m.activeByBike[bikeID] = r

	out := *r
	events = append(events,
		m.bikeEvent(EventBikeUpdated, b, now),
		rentalEvent(EventRentalStarted, r, now),
	)
	m.logger.InfoContext(ctx, "rental started",
		"rental_id", r.ID, "user_id", userID, "bike_id", bikeID, "station_id", stationID, "reserved", reserved)

	m.release(ctx, events)
	return out, nil
}

// ReturnBike docks the user's bike at destStationID and completes the
// rental. When the destination is full the return fails with ErrStationFull
// and the rental stays ACTIVE with the bike ON_TRIP.
func (m *Manager) ReturnBike(ctx context.Context, userID, bikeID, destStationID string) (rental.Rental, error) {
	m.mu.Lock()
	r, ok := m.activeByUser[userID]
	if !ok || r.BikeID != bikeID {
		m.mu.Unlock()
		return rental.Rental{}, m.fail("return", ErrRentalNotFound.Withf("no active rental of bike %s for user %s", bikeID, userID))
	}
	st, ok := m.stations[destStationID]
	if !ok {
		m.mu.Unlock()
		return rental.Rental{}, m.fail("return", ErrStationNotFound.Withf("station %s not found", destStationID))
	}
	b := m.bikes[bikeID]
	if err := m.dock(st, b); err != nil {
		m.mu.Unlock()
		return rental.Rental{}, m.fail("return", err)
	}

	now := m.clock()
	if err := r.Complete(destStationID, now, m.rate); err != nil {
		panic(err)
	}
	delete(m.activeByUser, userID)
	delete(m.activeByBike, bikeID)

	out := *r
	events := []Event{
		m.bikeEvent(EventBikeUpdated, b, now),
		rentalEvent(EventRentalCompleted, r, now),
	}
	m.logger.InfoContext(ctx, "rental completed",
		"rental_id", r.ID, "user_id", userID, "bike_id", bikeID, "station_id", destStationID,
		"minutes", r.Minutes(), "cost", r.Cost.Int64)

	m.release(ctx, events)
	return out, nil
}

// releaseReservation drops r before its deadline and frees its bike.
func (m *Manager) releaseReservation(ctx context.Context, r *reservation.Reservation, now time.Time) []Event {
	st := m.stations[r.StationID]
	if _, err := st.ReleaseReservation(r.BikeID); err != nil {
		// Unreachable: r was found active at st under the same lock.
		panic(err)
	}
	m.logger.InfoContext(ctx, "reservation released",
		"reservation_id", r.ID, "user_id", r.UserID, "bike_id", r.BikeID, "station_id", r.StationID)

	events := []Event{reservationEvent(EventReservationExpired, r, now)}
	if b, ok := m.bikes[r.BikeID]; ok {
		events = append(events, m.bikeEvent(EventBikeUpdated, b, now))
	}
	return events
}
