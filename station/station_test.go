package station

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestStation(t *testing.T, capacity, bikes int) *Station {
	t.Helper()
	s, err := New("S1", capacity, Metadata{Name: "Test Station"})
	if err != nil {
		t.Fatalf("failed to create station: %v", err)
	}
	for i := 1; i <= bikes; i++ {
		b, _ := bike.New(fmt.Sprintf("B%d", i), bike.Standard)
		if err := s.ReturnBike(b); err != nil {
			t.Fatalf("failed to dock bike %s: %v", b.ID, err)
		}
	}
	return s
}

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	for _, c := range []int{0, -3} {
		if _, err := New("S1", c, Metadata{}); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("capacity %d: expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestReturnBike_RespectsCapacity(t *testing.T) {
	s := newTestStation(t, 2, 2)

	if !s.IsFull() {
		t.Fatalf("expected station to be full")
	}

	extra, _ := bike.New("B9", bike.Standard)
	_ = extra.SetStatus(bike.StatusOnTrip)
	err := s.ReturnBike(extra)
	if !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if s.BikesDocked() != 2 {
		t.Errorf("expected 2 docked bikes, got %d", s.BikesDocked())
	}
	if extra.Status() != bike.StatusOnTrip {
		t.Errorf("expected rejected bike to stay %s, got %s", bike.StatusOnTrip, extra.Status())
	}
}

func TestReturnBike_SetsAvailable(t *testing.T) {
	s := newTestStation(t, 3, 0)
	b, _ := bike.New("B1", bike.EBike)
	_ = b.SetStatus(bike.StatusOnTrip)

	if err := s.ReturnBike(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status() != bike.StatusAvailable {
		t.Errorf("expected status %s, got %s", bike.StatusAvailable, b.Status())
	}
	if err := s.ReturnBike(b); !errors.Is(err, ErrAlreadyDocked) {
		t.Errorf("expected ErrAlreadyDocked, got %v", err)
	}
	if s.FreeDocks() != 2 {
		t.Errorf("expected 2 free docks, got %d", s.FreeDocks())
	}
}

func TestUndock(t *testing.T) {
	s := newTestStation(t, 3, 3)

	b, err := s.Undock("B2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ID != "B2" {
		t.Errorf("expected B2, got %s", b.ID)
	}
	if _, ok := s.Bike("B2"); ok {
		t.Errorf("expected B2 to be gone")
	}
	if _, err := s.Undock("B2"); !errors.Is(err, ErrNotDocked) {
		t.Errorf("expected ErrNotDocked, got %v", err)
	}

	docked := s.Docked()
	if len(docked) != 2 || docked[0].ID != "B1" || docked[1].ID != "B3" {
		t.Errorf("expected dock order [B1 B3], got %v", ids(docked))
	}
}

func TestCreateReservation_PicksLongestDockedAvailable(t *testing.T) {
	s := newTestStation(t, 5, 3)
	b1, _ := s.Bike("B1")
	_ = b1.SetStatus(bike.StatusMaintenance)

	r, err := s.CreateReservation("user-1", 15*time.Minute, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.BikeID != "B2" {
		t.Errorf("expected B2 to be reserved, got %s", r.BikeID)
	}
	b2, _ := s.Bike("B2")
	if b2.Status() != bike.StatusReserved {
		t.Errorf("expected B2 %s, got %s", bike.StatusReserved, b2.Status())
	}
	if s.BikesAvailable() != 1 {
		t.Errorf("expected 1 available bike, got %d", s.BikesAvailable())
	}

	r2, err := s.CreateReservation("user-2", 15*time.Minute, t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r2.BikeID != "B3" {
		t.Errorf("expected B3 to be reserved, got %s", r2.BikeID)
	}
}

func TestCreateReservation_Failures(t *testing.T) {
	s := newTestStation(t, 3, 1)

	if _, err := s.CreateReservation("user-1", 0, t0); !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("expected ErrInvalidTTL, got %v", err)
	}
	if _, err := s.CreateReservation("user-1", time.Minute, t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CreateReservation("user-1", time.Minute, t0); !errors.Is(err, ErrUserHasReservation) {
		t.Errorf("expected ErrUserHasReservation, got %v", err)
	}
	if _, err := s.CreateReservation("user-2", time.Minute, t0); !errors.Is(err, ErrNoBikeAvailable) {
		t.Errorf("expected ErrNoBikeAvailable, got %v", err)
	}
	if len(s.Reservations()) != 1 {
		t.Errorf("expected 1 active reservation, got %d", len(s.Reservations()))
	}
}

func TestExpireReservations(t *testing.T) {
	s := newTestStation(t, 3, 2)
	short, _ := s.CreateReservation("user-1", 5*time.Minute, t0)
	long, _ := s.CreateReservation("user-2", 15*time.Minute, t0)

	if got := s.ExpireReservations(t0.Add(4 * time.Minute)); len(got) != 0 {
		t.Fatalf("expected nothing to expire yet, got %d", len(got))
	}

	expired := s.ExpireReservations(t0.Add(5 * time.Minute))
	if len(expired) != 1 || expired[0] != short {
		t.Fatalf("expected only the short reservation to expire, got %v", expired)
	}
	if short.Status != reservation.StatusExpired {
		t.Errorf("expected status %s, got %s", reservation.StatusExpired, short.Status)
	}
	b, _ := s.Bike(short.BikeID)
	if b.Status() != bike.StatusAvailable {
		t.Errorf("expected released bike to be %s, got %s", bike.StatusAvailable, b.Status())
	}

	// Repeating the sweep is a no-op.
	if got := s.ExpireReservations(t0.Add(5 * time.Minute)); len(got) != 0 {
		t.Errorf("expected repeated sweep to expire nothing, got %d", len(got))
	}
	if long.Status != reservation.StatusActive {
		t.Errorf("expected long reservation to stay active, got %s", long.Status)
	}
	if _, ok := s.Reservation(long.BikeID); !ok {
		t.Errorf("expected long reservation to remain in the active set")
	}
}

func TestConsumeReservation(t *testing.T) {
	s := newTestStation(t, 3, 1)
	r, _ := s.CreateReservation("user-1", time.Minute, t0)

	got, err := s.ConsumeReservation(r.BikeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != reservation.StatusConsumed {
		t.Errorf("expected status %s, got %s", reservation.StatusConsumed, got.Status)
	}
	if _, err := s.ConsumeReservation(r.BikeID); !errors.Is(err, ErrNoReservation) {
		t.Errorf("expected ErrNoReservation, got %v", err)
	}
	if expired := s.ExpireReservations(t0.Add(time.Hour)); len(expired) != 0 {
		t.Errorf("expected consumed reservation never to expire, got %d", len(expired))
	}
}

func TestReleaseReservation(t *testing.T) {
	s := newTestStation(t, 3, 2)
	r, _ := s.CreateReservation("user-1", time.Hour, t0)

	got, err := s.ReleaseReservation(r.BikeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != reservation.StatusExpired {
		t.Errorf("expected status %s, got %s", reservation.StatusExpired, got.Status)
	}
	if b, _ := s.Bike(r.BikeID); b.Status() != bike.StatusAvailable {
		t.Errorf("expected released bike to be %s, got %s", bike.StatusAvailable, b.Status())
	}
	if s.BikesAvailable() != 2 {
		t.Errorf("expected 2 bikes available, got %d", s.BikesAvailable())
	}
	if _, err := s.ReleaseReservation(r.BikeID); !errors.Is(err, ErrNoReservation) {
		t.Errorf("expected ErrNoReservation, got %v", err)
	}
}

func TestRebalancing(t *testing.T) {
	s := newTestStation(t, 3, 3)

	if r := s.Rebalancing(); r.Needed || r.Severity != SeverityNone {
		t.Errorf("expected no rebalancing for a stocked station, got %+v", r)
	}

	_, _ = s.Undock("B1")
	_, _ = s.Undock("B2")
	r := s.Rebalancing()
	if s.BikesAvailable() != 1 {
		t.Fatalf("expected 1 available, got %d", s.BikesAvailable())
	}
	if r.Needed {
		t.Errorf("expected ratio %.2f to stay above threshold, got %+v", r.Ratio, r)
	}

	_, _ = s.Undock("B3")
	r = s.Rebalancing()
	if !r.Needed || r.Severity != SeverityCritical || r.Ratio != 0 {
		t.Errorf("expected critical alert for an empty station, got %+v", r)
	}
}

func TestRebalancing_WarningAtThreshold(t *testing.T) {
	s := newTestStation(t, 10, 2)

	r := s.Rebalancing()
	if !r.Needed || r.Severity != SeverityWarning {
		t.Errorf("expected warning at exactly 20%%, got %+v", r)
	}

	// Reserved and maintenance bikes do not count as inventory.
	s2 := newTestStation(t, 4, 2)
	_, _ = s2.CreateReservation("user-1", time.Minute, t0)
	b2, _ := s2.Bike("B2")
	_ = b2.SetStatus(bike.StatusMaintenance)
	if r := s2.Rebalancing(); r.Severity != SeverityCritical {
		t.Errorf("expected critical with nothing available, got %+v", r)
	}
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := newTestStation(t, 3, 2)
	_, _ = s.CreateReservation("user-1", time.Minute, t0)

	snap := s.Snapshot()
	snap.BikeIDs[0] = "changed"
	snap.Reservations[0].Status = reservation.StatusExpired

	if b, _ := s.Bike("B1"); b == nil {
		t.Errorf("expected B1 still docked")
	}
	if r, _ := s.Reservation("B1"); r.Status != reservation.StatusActive {
		t.Errorf("expected live reservation to stay active, got %s", r.Status)
	}
	if snap.Capacity != 3 || snap.BikesAvailable != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func ids(bs []*bike.Bike) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.ID)
	}
	return out
}
