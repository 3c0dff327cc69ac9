package bms

import (
	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

var (
	// ErrStationNotFound is returned when a station id is unknown.
	ErrStationNotFound = apperr.New(apperr.NotFound, "STATION_NOT_FOUND", "station not found")

	// ErrBikeNotFound is returned when a bike id is unknown.
	ErrBikeNotFound = apperr.New(apperr.NotFound, "BIKE_NOT_FOUND", "bike not found")

	// ErrRentalNotFound is returned when no active rental matches the user and bike.
	ErrRentalNotFound = apperr.New(apperr.NotFound, "RENTAL_NOT_FOUND", "rental not found")

	// ErrReservationNotFound is returned when the user holds no active reservation.
	ErrReservationNotFound = apperr.New(apperr.NotFound, "RESERVATION_NOT_FOUND", "reservation not found")

	// ErrDuplicateStation is returned when adding a station whose id is taken.
	ErrDuplicateStation = apperr.New(apperr.Conflict, "DUPLICATE_STATION", "station already exists")

	// ErrDuplicateBike is returned when adding a bike whose id is taken.
	ErrDuplicateBike = apperr.New(apperr.Conflict, "DUPLICATE_BIKE", "bike already exists")

	// ErrBikeNotAvailable is returned when a bike is not docked at the station,
	// is reserved by someone else, or is in a status that forbids the operation.
	ErrBikeNotAvailable = apperr.New(apperr.Conflict, "BIKE_NOT_AVAILABLE", "bike not available")

	// ErrUserHasActiveRental is returned when the user has not ended their current rental.
	ErrUserHasActiveRental = apperr.New(apperr.Conflict, "USER_HAS_ACTIVE_RENTAL", "user already has an active rental")

	// ErrInvalidID is returned for empty user, station or bike ids.
	ErrInvalidID = apperr.New(apperr.InvalidArgument, "INVALID_ID", "id must not be empty")

	// ErrInvalidSnapshot is returned when a snapshot violates a model invariant.
	ErrInvalidSnapshot = apperr.New(apperr.InvalidArgument, "INVALID_SNAPSHOT", "invalid snapshot")
)

// Failures raised by stations surface unchanged through the manager.
var (
	ErrStationFull              = station.ErrFull
	ErrInvalidCapacity          = station.ErrInvalidCapacity
	ErrInvalidTTL               = station.ErrInvalidTTL
	ErrUserHasActiveReservation = station.ErrUserHasReservation
	ErrNoBikeAvailable          = station.ErrNoBikeAvailable
)
