package bms

import (
	"context"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

// AddStation registers an empty station.
func (m *Manager) AddStation(ctx context.Context, id string, capacity int, meta station.Metadata) (station.Snapshot, error) {
	if id == "" {
		return station.Snapshot{}, m.fail("add_station", ErrInvalidID.Withf("station id must not be empty"))
	}

	m.mu.Lock()
	if _, ok := m.stations[id]; ok {
		m.mu.Unlock()
		return station.Snapshot{}, m.fail("add_station", ErrDuplicateStation.Withf("station %s already exists", id))
	}
	st, err := station.New(id, capacity, meta)
	if err != nil {
		m.mu.Unlock()
		return station.Snapshot{}, m.fail("add_station", err)
	}
	m.stations[id] = st
	now := m.clock()
	snap := st.Snapshot()
	m.logger.InfoContext(ctx, "station added", "station_id", id, "capacity", capacity)

	m.release(ctx, []Event{m.stationEvent(EventStationAdded, st, now)})
	return snap, nil
}

// BikeSpec describes a bike brought into the fleet by an operator.
type BikeSpec struct {
	ID           string
	Type         bike.Type
	BatteryLevel *int
}

// AddBike creates a bike and docks it AVAILABLE at stationID.
func (m *Manager) AddBike(ctx context.Context, stationID string, spec BikeSpec) (BikeState, error) {
	if spec.ID == "" || stationID == "" {
		return BikeState{}, m.fail("add_bike", ErrInvalidID.Withf("bike and station ids must not be empty"))
	}
	b, err := bike.New(spec.ID, spec.Type)
	if err != nil {
		return BikeState{}, m.fail("add_bike", err)
	}
	if spec.BatteryLevel != nil {
		if err := b.SetBatteryLevel(*spec.BatteryLevel); err != nil {
			return BikeState{}, m.fail("add_bike", err)
		}
	}

	m.mu.Lock()
	if _, ok := m.bikes[spec.ID]; ok {
		m.mu.Unlock()
		return BikeState{}, m.fail("add_bike", ErrDuplicateBike.Withf("bike %s already exists", spec.ID))
	}
	st, ok := m.stations[stationID]
	if !ok {
		m.mu.Unlock()
		return BikeState{}, m.fail("add_bike", ErrStationNotFound.Withf("station %s not found", stationID))
	}
	if err := m.dock(st, b); err != nil {
		m.mu.Unlock()
		return BikeState{}, m.fail("add_bike", err)
	}
	m.bikes[b.ID] = b
	now := m.clock()
	state := BikeState{Bike: b.Clone(), StationID: stationID}
	m.logger.InfoContext(ctx, "bike added", "bike_id", b.ID, "station_id", stationID, "type", b.Type.String())

	m.release(ctx, []Event{m.bikeEvent(EventBikeAdded, b, now)})
	return state, nil
}

// RemoveBike takes a docked bike out of the fleet. Reserved bikes and bikes
// on a trip cannot be removed.
func (m *Manager) RemoveBike(ctx context.Context, bikeID string) error {
	m.mu.Lock()
	b, ok := m.bikes[bikeID]
	if !ok {
		m.mu.Unlock()
		return m.fail("remove_bike", ErrBikeNotFound.Withf("bike %s not found", bikeID))
	}
	stationID, docked := m.location[bikeID]
	if status := b.Status(); !docked || status == bike.StatusReserved || status == bike.StatusOnTrip {
		m.mu.Unlock()
		return m.fail("remove_bike", ErrBikeNotAvailable.Withf("bike %s is %s and cannot be removed", bikeID, status))
	}
	now := m.clock()
	// Captured before undocking so the event still names the station.
	ev := m.bikeEvent(EventBikeRemoved, b, now)
	if _, err := m.undock(m.stations[stationID], bikeID); err != nil {
		m.mu.Unlock()
		return m.fail("remove_bike", err)
	}
	delete(m.bikes, bikeID)
	m.logger.InfoContext(ctx, "bike removed", "bike_id", bikeID, "station_id", stationID)

	m.release(ctx, []Event{ev})
	return nil
}

// SetMaintenance moves a docked bike between AVAILABLE and MAINTENANCE.
func (m *Manager) SetMaintenance(ctx context.Context, bikeID string, on bool) (BikeState, error) {
	from, to := bike.StatusAvailable, bike.StatusMaintenance
	if !on {
		from, to = to, from
	}

	m.mu.Lock()
	b, ok := m.bikes[bikeID]
	if !ok {
		m.mu.Unlock()
		return BikeState{}, m.fail("set_maintenance", ErrBikeNotFound.Withf("bike %s not found", bikeID))
	}
	if b.Status() == to {
		state := BikeState{Bike: b.Clone(), StationID: m.location[bikeID]}
		m.mu.Unlock()
		return state, nil
	}
	if _, docked := m.location[bikeID]; !docked || b.Status() != from {
		err := ErrBikeNotAvailable.Withf("bike %s is %s", bikeID, b.Status())
		m.mu.Unlock()
		return BikeState{}, m.fail("set_maintenance", err)
	}
	if err := b.SetStatus(to); err != nil {
		m.mu.Unlock()
		return BikeState{}, m.fail("set_maintenance", err)
	}
	return m.updated(ctx, b, "bike maintenance changed")
}

// UpdateBattery records a new charge level for an e-bike.
func (m *Manager) UpdateBattery(ctx context.Context, bikeID string, level int) (BikeState, error) {
	m.mu.Lock()
	b, ok := m.bikes[bikeID]
	if !ok {
		m.mu.Unlock()
		return BikeState{}, m.fail("update_battery", ErrBikeNotFound.Withf("bike %s not found", bikeID))
	}
	if err := b.SetBatteryLevel(level); err != nil {
		m.mu.Unlock()
		return BikeState{}, m.fail("update_battery", err)
	}
	return m.updated(ctx, b, "bike battery updated")
}

// updated releases the lock after a single-bike change.
func (m *Manager) updated(ctx context.Context, b *bike.Bike, msg string) (BikeState, error) {
	now := m.clock()
	state := BikeState{Bike: b.Clone(), StationID: m.location[b.ID]}
	m.logger.DebugContext(ctx, msg, "bike_id", b.ID, "status", string(b.Status()))
	m.release(ctx, []Event{m.bikeEvent(EventBikeUpdated, b, now)})
	return state, nil
}
