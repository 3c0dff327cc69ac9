package rental

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// GetRentals returns every rental, active and completed, in start order.
func (r *Repository) GetRentals(ctx context.Context) ([]Rental, error) {
	var rentals []Rental
	err := r.db.SelectContext(ctx, &rentals, getRentalsQuery)
	return rentals, err
}

const getRentalsQuery = `SELECT * FROM rentals ORDER BY start_time ASC`

func (r *Repository) StartRental(ctx context.Context, ext sqlx.ExtContext, rental Rental) error {
	_, err := sqlx.NamedExecContext(ctx, ext, startRentalQuery, rental)
	return err
}

const startRentalQuery = `
INSERT INTO rentals (id, user_id, bike_id, start_station_id, start_time, status)
VALUES (:id, :user_id, :bike_id, :start_station_id, :start_time, :status)
ON CONFLICT (id) DO NOTHING
`

func (r *Repository) CompleteRental(ctx context.Context, ext sqlx.ExtContext, rental Rental) error {
	_, err := sqlx.NamedExecContext(ctx, ext, completeRentalQuery, rental)
	return err
}

const completeRentalQuery = `
UPDATE rentals SET end_station_id = :end_station_id, end_time = :end_time, cost = :cost, status = :status
WHERE id = :id AND end_time IS NULL
`
