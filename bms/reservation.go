package bms

import (
	"context"
	"time"

	"github.com/aninnda/BikeShare-System-sub002/reservation"
)

// CreateReservation holds the longest-docked AVAILABLE bike at stationID for
// userID until now+ttl. A user holds at most one active reservation across
// all stations.
func (m *Manager) CreateReservation(ctx context.Context, userID, stationID string, ttl time.Duration) (reservation.Reservation, error) {
	if userID == "" || stationID == "" {
		return reservation.Reservation{}, m.fail("reserve", ErrInvalidID.Withf("user and station ids must not be empty"))
	}

	m.mu.Lock()
	st, ok := m.stations[stationID]
	if !ok {
		m.mu.Unlock()
		return reservation.Reservation{}, m.fail("reserve", ErrStationNotFound.Withf("station %s not found", stationID))
	}

	now := m.clock()
	events := m.expire(now, m.allStations()...)

	if held, ok := m.activeReservation(userID); ok {
		err := ErrUserHasActiveReservation.Withf("user %s already holds bike %s at station %s", userID, held.BikeID, held.StationID)
		m.release(ctx, events)
		return reservation.Reservation{}, m.fail("reserve", err)
	}
	r, err := st.CreateReservation(userID, ttl, now)
	if err != nil {
		m.release(ctx, events)
		return reservation.Reservation{}, m.fail("reserve", err)
	}

	out := *r
	events = append(events,
		reservationEvent(EventReservationCreated, r, now),
		m.bikeEvent(EventBikeUpdated, m.bikes[r.BikeID], now),
	)
	m.logger.InfoContext(ctx, "reservation created",
		"reservation_id", r.ID, "user_id", userID, "bike_id", r.BikeID, "station_id", stationID, "expires_at", r.ExpiresAt)

	m.release(ctx, events)
	return out, nil
}

// ExpireReservations sweeps every station at the current time and returns
// the reservations that expired. Running it again at the same instant
// expires nothing.
func (m *Manager) ExpireReservations(ctx context.Context) []reservation.Reservation {
	m.mu.Lock()
	now := m.clock()
	events := m.expire(now, m.allStations()...)

	var expired []reservation.Reservation
	for _, ev := range events {
		if ev.Reservation != nil {
			expired = append(expired, *ev.Reservation)
		}
	}
	if len(expired) > 0 {
		m.logger.InfoContext(ctx, "reservations expired", "count", len(expired))
	}

	m.release(ctx, events)
	return expired
}

// RunExpiry sweeps on every tick until ctx is done.
func (m *Manager) RunExpiry(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "reservation sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "reservation sweeper stopped")
			return nil
		case <-ticker.C:
			m.ExpireReservations(ctx)
		}
	}
}
