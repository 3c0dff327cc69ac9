package station

import (
	"github.com/aninnda/BikeShare-System-sub002/reservation"
)

// RebalanceThresholdPercent is the inventory ratio, in percent of capacity,
// at or below which a station needs bikes brought in.
const RebalanceThresholdPercent = 20

type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rebalancing is derived from the current inventory on every call; it is
// never stored.
type Rebalancing struct {
	StationID string   `json:"stationId"`
	Available int      `json:"available"`
	Capacity  int      `json:"capacity"`
	Ratio     float64  `json:"inventoryRatio"`
	Needed    bool     `json:"needed"`
	Severity  Severity `json:"severity"`
}

func (s *Station) Rebalancing() Rebalancing {
	available := s.BikesAvailable()
	r := Rebalancing{
		StationID: s.ID,
		Available: available,
		Capacity:  s.capacity,
		Ratio:     float64(available) / float64(s.capacity),
		Severity:  SeverityNone,
	}
	// Integer comparison keeps exactly 20% on the alerting side.
	if available*100 <= s.capacity*RebalanceThresholdPercent {
		r.Needed = true
		r.Severity = SeverityWarning
		if available == 0 {
			r.Severity = SeverityCritical
		}
	}
	return r
}

// Snapshot is a copy of a station's state safe to hand outside the manager.
type Snapshot struct {
	ID string
	Metadata
	Capacity       int
	BikeIDs        []string
	BikesAvailable int
	Reservations   []reservation.Reservation
	Rebalancing    Rebalancing
}

func (s *Station) Snapshot() Snapshot {
	snap := Snapshot{
		ID:             s.ID,
		Metadata:       s.Metadata,
		Capacity:       s.capacity,
		BikeIDs:        make([]string, 0, len(s.docked)),
		BikesAvailable: s.BikesAvailable(),
		Rebalancing:    s.Rebalancing(),
	}
	for _, b := range s.docked {
		snap.BikeIDs = append(snap.BikeIDs, b.ID)
	}
	for _, r := range s.Reservations() {
		snap.Reservations = append(snap.Reservations, *r)
	}
	return snap
}

func (s Snapshot) IsFull() bool {
	return len(s.BikeIDs) >= s.Capacity
}
