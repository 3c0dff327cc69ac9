package reservation

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	r := New("user-1", "B1", "S1", t0, 15*time.Minute)

	if r.Status != StatusActive {
		t.Errorf("expected status %s, got %s", StatusActive, r.Status)
	}
	if !r.ExpiresAt.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("expected expiry %v, got %v", t0.Add(15*time.Minute), r.ExpiresAt)
	}
}

func TestDueAt_Boundary(t *testing.T) {
	r := New("user-1", "B1", "S1", t0, 15*time.Minute)

	if r.DueAt(t0.Add(15*time.Minute - time.Nanosecond)) {
		t.Errorf("expected reservation not to be due before expiry")
	}
	if !r.DueAt(t0.Add(15 * time.Minute)) {
		t.Errorf("expected reservation to be due exactly at expiry")
	}
	if !r.DueAt(t0.Add(time.Hour)) {
		t.Errorf("expected reservation to be due after expiry")
	}
}

func TestExpire_IsTerminal(t *testing.T) {
	r := New("user-1", "B1", "S1", t0, time.Minute)

	if err := r.Expire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.DueAt(t0.Add(time.Hour)) {
		t.Errorf("expected expired reservation never to be due again")
	}
	if err := r.Expire(); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
	if err := r.Consume(); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
	if r.Status != StatusExpired {
		t.Errorf("expected status %s, got %s", StatusExpired, r.Status)
	}
}

func TestConsume(t *testing.T) {
	r := New("user-1", "B1", "S1", t0, time.Minute)

	if err := r.Consume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != StatusConsumed {
		t.Errorf("expected status %s, got %s", StatusConsumed, r.Status)
	}
	if err := r.Expire(); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected consumed reservation not to expire, got %v", err)
	}
}
