package reservation

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetActive fetches every reservation still holding a bike, oldest first.
func (r *Repository) GetActive(ctx context.Context) ([]Reservation, error) {
	var res []Reservation
	err := r.db.SelectContext(ctx, &res, getActiveQuery, StatusActive)
	return res, err
}

const getActiveQuery = `SELECT * FROM reservations WHERE status = $1 ORDER BY created_at ASC`

// Save inserts the reservation or records its new status.
func (r *Repository) Save(ctx context.Context, ext sqlx.ExtContext, res Reservation) error {
	_, err := sqlx.NamedExecContext(ctx, ext, saveQuery, res)
	return err
}

const saveQuery = `
INSERT INTO reservations (id, user_id, bike_id, station_id, created_at, expires_at, status)
VALUES (:id, :user_id, :bike_id, :station_id, :created_at, :expires_at, :status)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
`
