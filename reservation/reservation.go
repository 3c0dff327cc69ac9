package reservation

import (
	"time"

	"github.com/google/uuid"

	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
)

var ErrNotActive = apperr.New(apperr.Conflict, "RESERVATION_NOT_ACTIVE", "reservation is not active")

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusExpired  Status = "EXPIRED"
	StatusConsumed Status = "CONSUMED"
)

// Reservation is a time-boxed hold on one bike for one user.
type Reservation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	BikeID    string    `db:"bike_id" json:"bikeId"`
	StationID string    `db:"station_id" json:"stationId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	Status    Status    `db:"status" json:"status"`
}

func New(userID, bikeID, stationID string, now time.Time, ttl time.Duration) *Reservation {
	return &Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		BikeID:    bikeID,
		StationID: stationID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Status:    StatusActive,
	}
}

// DueAt reports whether an ACTIVE reservation has reached its expiry at now.
func (r *Reservation) DueAt(now time.Time) bool {
	return r.Status == StatusActive && !now.Before(r.ExpiresAt)
}

// Expire moves an ACTIVE reservation to EXPIRED. Terminal states never change.
func (r *Reservation) Expire() error {
	if r.Status != StatusActive {
		return ErrNotActive.Withf("reservation %s is %s", r.ID, r.Status)
	}
	r.Status = StatusExpired
	return nil
}

// Consume moves an ACTIVE reservation to CONSUMED when its bike is rented.
func (r *Reservation) Consume() error {
	if r.Status != StatusActive {
		return ErrNotActive.Withf("reservation %s is %s", r.ID, r.Status)
	}
	r.Status = StatusConsumed
	return nil
}
