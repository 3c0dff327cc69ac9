package customer

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// FakeRepository keeps customers in memory for tests and database-less runs.
type FakeRepository struct {
	mu        sync.Mutex
	customers map[string]Customer
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		customers: make(map[string]Customer),
	}
}

func (r *FakeRepository) GetByUserID(_ context.Context, userID string) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[userID]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *FakeRepository) GetOrCreate(_ context.Context, userID string) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[userID]
	if !ok {
		c = New(userID, time.Now())
		r.customers[userID] = c
	}
	return c, nil
}

func (r *FakeRepository) AddStripeID(_ context.Context, userID, stripeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.customers[userID]; ok {
		c.StripeID = sql.NullString{String: stripeID, Valid: true}
		r.customers[userID] = c
	}
	return nil
}

func (r *FakeRepository) UpdateProfile(_ context.Context, userID, email, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.customers[userID]; ok {
		c.Email = sql.NullString{String: email, Valid: email != ""}
		c.Name = sql.NullString{String: name, Valid: name != ""}
		r.customers[userID] = c
	}
	return nil
}
