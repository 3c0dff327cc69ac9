package acceptance

import (
	"net/http"
	"testing"
	"time"
)

type reservationBody struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BikeID    string    `json:"bikeId"`
	StationID string    `json:"stationId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Status    string    `json:"status"`
}

func TestReservation_HoldsBikeForUser(t *testing.T) {
	ts := NewTestServer(t)
	ts.CreateTestStation(t, "S1", 5, 1)

	w := ts.POST("/stations/S1/reservations", nil, rider("user-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	r := decode[reservationBody](t, w)
	if r.BikeID != "S1-B1" || r.Status != "ACTIVE" || !r.ExpiresAt.Equal(ts.Clock.Now().Add(testTTL)) {
		t.Errorf("unexpected reservation %+v", r)
	}

	cur := decode[reservationBody](t, ts.GET("/reservations/current", rider("user-1")))
	if cur.ID != r.ID {
		t.Errorf("expected current reservation %s, got %+v", r.ID, cur)
	}

	expectError(t, ts.POST("/stations/S1/reservations", nil, rider("user-1")), http.StatusConflict, "USER_HAS_ACTIVE_RESERVATION")
	expectError(t, ts.POST("/stations/S1/reservations", nil, rider("user-2")), http.StatusConflict, "NO_BIKE_AVAILABLE")
	expectError(t, ts.POST("/rentals", map[string]string{"stationId": "S1", "bikeId": "S1-B1"}, rider("user-2")),
		http.StatusConflict, "BIKE_NOT_AVAILABLE")

	w = ts.POST("/rentals", map[string]string{"stationId": "S1", "bikeId": "S1-B1"}, rider("user-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected holder to rent reserved bike, got %d: %s", w.Code, w.Body.String())
	}
	expectError(t, ts.GET("/reservations/current", rider("user-1")), http.StatusNotFound, "RESERVATION_NOT_FOUND")
}

func TestReservation_Expires(t *testing.T) {
	ts := NewTestServer(t)
	ts.CreateTestStation(t, "S1", 5, 1)

	ts.POST("/stations/S1/reservations", map[string]int{"ttlSeconds": 60}, rider("user-1"))
	ts.Clock.Advance(time.Minute)

	expectError(t, ts.GET("/reservations/current", rider("user-1")), http.StatusNotFound, "RESERVATION_NOT_FOUND")

	// Renting sweeps the station first, so the lapsed hold no longer blocks.
	w := ts.POST("/rentals", map[string]string{"stationId": "S1", "bikeId": "S1-B1"}, rider("user-2"))
	if w.Code != http.StatusCreated {
		t.Errorf("expected lapsed reservation not to block, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReservation_Failures(t *testing.T) {
	ts := NewTestServer(t)
	ts.CreateTestStation(t, "S1", 5, 1)

	expectError(t, ts.POST("/stations/S9/reservations", nil, rider("user-1")), http.StatusNotFound, "STATION_NOT_FOUND")
	expectError(t, ts.POST("/stations/S1/reservations", map[string]int{"ttlSeconds": 0}, rider("user-1")), http.StatusBadRequest, "INVALID_TTL")
	expectError(t, ts.POST("/stations/S1/reservations", map[string]int{"ttlSeconds": -60}, rider("user-1")), http.StatusBadRequest, "INVALID_TTL")
	expectError(t, ts.POST("/stations/S1/reservations", map[string]int{"ttlSeconds": 86401}, rider("user-1")), http.StatusBadRequest, "BAD_REQUEST")
	expectError(t, ts.POST("/stations/S1/reservations", map[string]int64{"ttlSeconds": 1 << 62}, rider("user-1")), http.StatusBadRequest, "BAD_REQUEST")
	expectError(t, ts.POST("/stations/S1/reservations", map[string]int64{"ttlSeconds": -1 << 62}, rider("user-1")), http.StatusBadRequest, "BAD_REQUEST")
	expectError(t, ts.GET("/reservations/current", rider("user-1")), http.StatusNotFound, "RESERVATION_NOT_FOUND")
	expectError(t, ts.POST("/stations/S1/reservations", nil, operator()), http.StatusForbidden, "FORBIDDEN")
}
