package bike

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Record is the persisted form of a bike, including where it is docked.
type Record struct {
	ID           string         `db:"id"`
	Type         Type           `db:"type"`
	Status       Status         `db:"status"`
	BatteryLevel sql.NullInt32  `db:"battery_level"`
	StationID    sql.NullString `db:"station_id"`
	// DockPosition orders the bikes of one station by arrival.
	DockPosition sql.NullInt32 `db:"dock_position"`
}

// ToRecord captures b as docked at stationID ("" while on a trip).
func ToRecord(b *Bike, stationID string, position int) Record {
	r := Record{ID: b.ID, Type: b.Type, Status: b.status}
	if b.BatteryLevel != nil {
		r.BatteryLevel = sql.NullInt32{Int32: int32(*b.BatteryLevel), Valid: true}
	}
	if stationID != "" {
		r.StationID = sql.NullString{String: stationID, Valid: true}
		r.DockPosition = sql.NullInt32{Int32: int32(position), Valid: true}
	}
	return r
}

// Bike rebuilds the in-memory bike.
func (r Record) Bike() (*Bike, error) {
	b, err := New(r.ID, r.Type)
	if err != nil {
		return nil, err
	}
	if err := b.SetStatus(r.Status); err != nil {
		return nil, err
	}
	if r.BatteryLevel.Valid {
		if err := b.SetBatteryLevel(int(r.BatteryLevel.Int32)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBikes(ctx context.Context) ([]Record, error) {
	var bikes []Record
	err := r.db.SelectContext(ctx, &bikes, getBikes)
	return bikes, err
}

const getBikes = `SELECT id, type, status, battery_level, station_id, dock_position FROM bikes ORDER BY station_id, dock_position`

func (r *Repository) UpsertBike(ctx context.Context, ext sqlx.ExtContext, rec Record) error {
	_, err := sqlx.NamedExecContext(ctx, ext, upsertBike, rec)
	return err
}

const upsertBike = `
INSERT INTO bikes (id, type, status, battery_level, station_id, dock_position)
VALUES (:id, :type, :status, :battery_level, :station_id, :dock_position)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  battery_level = EXCLUDED.battery_level,
  station_id = EXCLUDED.station_id,
  dock_position = EXCLUDED.dock_position
`

func (r *Repository) DeleteBike(ctx context.Context, ext sqlx.ExtContext, id string) error {
	_, err := ext.ExecContext(ctx, deleteBike, id)
	return err
}

const deleteBike = `DELETE FROM bikes WHERE id = $1`
