package rental

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
)

var ErrNotActive = apperr.New(apperr.Conflict, "RENTAL_NOT_ACTIVE", "rental is not active")

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

type Rental struct {
	ID             uuid.UUID      `db:"id"`
	UserID         string         `db:"user_id"`
	BikeID         string         `db:"bike_id"`
	StartStationID string         `db:"start_station_id"`
	EndStationID   sql.NullString `db:"end_station_id"`
	StartTime      time.Time      `db:"start_time"`
	EndTime        sql.NullTime   `db:"end_time"`
	// Cost is in minor currency units.
	Cost   sql.NullInt64 `db:"cost"`
	Status Status        `db:"status"`
}

func Start(userID, bikeID, stationID string, now time.Time) *Rental {
	return &Rental{
		ID:             uuid.New(),
		UserID:         userID,
		BikeID:         bikeID,
		StartStationID: stationID,
		StartTime:      now,
		Status:         StatusActive,
	}
}

// BilledMinutes rounds the duration up to whole minutes.
func BilledMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	m := int64(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

// Complete finalizes the rental at stationID, charging ratePerMinute for
// every started minute.
func (r *Rental) Complete(stationID string, now time.Time, ratePerMinute int64) error {
	if r.Status != StatusActive {
		return ErrNotActive.Withf("rental %s is %s", r.ID, r.Status)
	}
	r.EndStationID = sql.NullString{String: stationID, Valid: true}
	r.EndTime = sql.NullTime{Time: now, Valid: true}
	r.Cost = sql.NullInt64{Int64: BilledMinutes(now.Sub(r.StartTime)) * ratePerMinute, Valid: true}
	r.Status = StatusCompleted
	return nil
}

// Minutes is the billed duration of a completed rental.
func (r *Rental) Minutes() int64 {
	if !r.EndTime.Valid {
		return 0
	}
	return BilledMinutes(r.EndTime.Time.Sub(r.StartTime))
}
