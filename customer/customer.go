// Package customer maps authenticated users to their billing identity.
package customer

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID uuid.UUID `db:"id"`
	// UserID is the subject of the user's access token.
	UserID    string         `db:"user_id"`
	StripeID  sql.NullString `db:"stripe_id"`
	Email     sql.NullString `db:"email"`
	Name      sql.NullString `db:"name"`
	CreatedAt time.Time      `db:"created_at"`
}

func New(userID string, now time.Time) Customer {
	return Customer{ID: uuid.New(), UserID: userID, CreatedAt: now}
}
