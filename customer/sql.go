package customer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("customer not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByUserID(ctx context.Context, userID string) (Customer, error) {
	var customer Customer
	err := r.db.GetContext(ctx, &customer, getByUserIDQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return customer, err
}

const getByUserIDQuery = "SELECT * FROM customers WHERE user_id = $1"

// GetOrCreate returns the user's customer, creating it on first use.
func (r *Repository) GetOrCreate(ctx context.Context, userID string) (Customer, error) {
	var customer Customer
	c := New(userID, time.Now())
	err := r.db.GetContext(ctx, &customer, getOrCreateQuery, c.ID, c.UserID, c.CreatedAt)
	return customer, err
}

// The no-op update makes RETURNING yield the existing row on conflict.
const getOrCreateQuery = `
INSERT INTO customers (id, user_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING *
`

func (r *Repository) AddStripeID(ctx context.Context, userID, stripeID string) error {
	_, err := r.db.ExecContext(ctx, addStripeIDQuery, stripeID, userID)
	return err
}

const addStripeIDQuery = "UPDATE customers SET stripe_id = $1 WHERE user_id = $2"

func (r *Repository) UpdateProfile(ctx context.Context, userID, email, name string) error {
	_, err := r.db.ExecContext(ctx, updateProfileQuery, email, name, userID)
	return err
}

const updateProfileQuery = `UPDATE customers SET email = NULLIF($1, ''), name = NULLIF($2, '') WHERE user_id = $3`
