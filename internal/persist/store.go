// Package persist keeps the manager's state in Postgres. It applies change
// events as they are committed and rebuilds a snapshot on startup.
package persist

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/bms"
	"github.com/aninnda/BikeShare-System-sub002/rental"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

//go:embed schema.sql
var schema string

// notifyTimeout bounds the transaction written for one batch of events.
const notifyTimeout = 5 * time.Second

type Store struct {
	db      *sqlx.DB
	timeout time.Duration

	stations     *station.Repository
	bikes        *bike.Repository
	reservations *reservation.Repository
	rentals      *rental.Repository
}

func New(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		timeout:      notifyTimeout,
		stations:     station.NewRepository(db),
		bikes:        bike.NewRepository(db),
		reservations: reservation.NewRepository(db),
		rentals:      rental.NewRepository(db),
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Load reads the full entity set.
func (s *Store) Load(ctx context.Context) (bms.Snapshot, error) {
	var (
		snap bms.Snapshot
		err  error
	)
	if snap.Stations, err = s.stations.GetStations(ctx); err != nil {
		return bms.Snapshot{}, fmt.Errorf("load stations: %w", err)
	}
	if snap.Bikes, err = s.bikes.GetBikes(ctx); err != nil {
		return bms.Snapshot{}, fmt.Errorf("load bikes: %w", err)
	}
	if snap.Reservations, err = s.reservations.GetActive(ctx); err != nil {
		return bms.Snapshot{}, fmt.Errorf("load reservations: %w", err)
	}
	if snap.Rentals, err = s.rentals.GetRentals(ctx); err != nil {
		return bms.Snapshot{}, fmt.Errorf("load rentals: %w", err)
	}
	return snap, nil
}

// Notify writes the events of one operation in a single transaction.
func (s *Store) Notify(ctx context.Context, events []bms.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ev := range events {
		if err := s.apply(ctx, tx, ev); err != nil {
			return fmt.Errorf("apply %s: %w", ev.Kind, err)
		}
	}

	return tx.Commit()
}

func (s *Store) apply(ctx context.Context, ext sqlx.ExtContext, ev bms.Event) error {
	switch ev.Kind {
	case bms.EventStationAdded:
		return s.stations.InsertStation(ctx, ext, *ev.Station)
	case bms.EventBikeAdded, bms.EventBikeUpdated:
		return s.bikes.UpsertBike(ctx, ext, *ev.Bike)
	case bms.EventBikeRemoved:
		return s.bikes.DeleteBike(ctx, ext, ev.Bike.ID)
	case bms.EventReservationCreated, bms.EventReservationConsumed, bms.EventReservationExpired:
		return s.reservations.Save(ctx, ext, *ev.Reservation)
	case bms.EventRentalStarted:
		return s.rentals.StartRental(ctx, ext, *ev.Rental)
	case bms.EventRentalCompleted:
		return s.rentals.CompleteRental(ctx, ext, *ev.Rental)
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}
