package station

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Record is the persisted form of a station. Docked bikes are stored on the
// bikes table.
type Record struct {
	ID       string `db:"id"`
	Capacity int    `db:"capacity"`
	Metadata
}

func (s *Station) Record() Record {
	return Record{ID: s.ID, Capacity: s.capacity, Metadata: s.Metadata}
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetStations(ctx context.Context) ([]Record, error) {
	var stations []Record
	err := r.db.SelectContext(ctx, &stations, getStations)
	return stations, err
}

const getStations = `SELECT id, capacity, name, address, opening_hours, location, type FROM stations ORDER BY id`

func (r *Repository) InsertStation(ctx context.Context, ext sqlx.ExtContext, rec Record) error {
	_, err := sqlx.NamedExecContext(ctx, ext, insertStation, rec)
	return err
}

const insertStation = `
INSERT INTO stations (id, capacity, name, address, opening_hours, location, type)
VALUES (:id, :capacity, :name, :address, :opening_hours, :location, :type)
ON CONFLICT (id) DO NOTHING
`
