package bms

import (
	"context"
	"sync"
	"time"

	"github.com/aninnda/BikeShare-System-sub002/bike"
	"github.com/aninnda/BikeShare-System-sub002/rental"
	"github.com/aninnda/BikeShare-System-sub002/reservation"
	"github.com/aninnda/BikeShare-System-sub002/station"
)

type EventKind string

const (
	EventStationAdded        EventKind = "station.added"
	EventBikeAdded           EventKind = "bike.added"
	EventBikeRemoved         EventKind = "bike.removed"
	EventBikeUpdated         EventKind = "bike.updated"
	EventReservationCreated  EventKind = "reservation.created"
	EventReservationConsumed EventKind = "reservation.consumed"
	EventReservationExpired  EventKind = "reservation.expired"
	EventRentalStarted       EventKind = "rental.started"
	EventRentalCompleted     EventKind = "rental.completed"
)

// Event describes one committed change. Exactly one of the entity fields is
// set, holding a copy of the entity's state after the change.
type Event struct {
	Kind        EventKind
	At          time.Time
	Station     *station.Record
	Bike        *bike.Record
	Reservation *reservation.Reservation
	Rental      *rental.Rental
}

// Notifier receives the events of each successful operation, in commit
// order. Delivery is asynchronous; Flush waits for it. A failing notifier
// never rolls the operation back.
type Notifier interface {
	Notify(ctx context.Context, events []Event) error
}

type NotifierFunc func(ctx context.Context, events []Event) error

func (f NotifierFunc) Notify(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

func (m *Manager) stationEvent(kind EventKind, st *station.Station, at time.Time) Event {
	rec := st.Record()
	return Event{Kind: kind, At: at, Station: &rec}
}

func (m *Manager) bikeEvent(kind EventKind, b *bike.Bike, at time.Time) Event {
	rec := bike.ToRecord(b, m.location[b.ID], int(m.dockSeq[b.ID]))
	return Event{Kind: kind, At: at, Bike: &rec}
}

func reservationEvent(kind EventKind, r *reservation.Reservation, at time.Time) Event {
	c := *r
	return Event{Kind: kind, At: at, Reservation: &c}
}

func rentalEvent(kind EventKind, r *rental.Rental, at time.Time) Event {
	c := *r
	return Event{Kind: kind, At: at, Rental: &c}
}

type batch struct {
	ctx    context.Context
	events []Event
}

// outbox queues event batches in commit order. At most one drain goroutine
// runs at a time, so notifiers see batches in the order they were pushed.
type outbox struct {
	mu      sync.Mutex
	idle    *sync.Cond
	queue   []batch
	running bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.idle = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) push(b batch, deliver func(batch)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, b)
	if !o.running {
		o.running = true
		go o.drain(deliver)
	}
}

func (o *outbox) drain(deliver func(batch)) {
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.running = false
			o.idle.Broadcast()
			o.mu.Unlock()
			return
		}
		b := o.queue[0]
		o.queue[0] = batch{}
		o.queue = o.queue[1:]
		o.mu.Unlock()

		deliver(b)
	}
}

func (o *outbox) wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.running {
		o.idle.Wait()
	}
}

// release queues the events for the notifiers and unlocks m.mu. Queueing
// happens before the unlock, which fixes the delivery order to the commit
// order; delivery itself runs without m.mu held.
func (m *Manager) release(ctx context.Context, events []Event) {
	if len(events) == 0 {
		m.mu.Unlock()
		return
	}
	if len(m.notifiers) > 0 {
		m.out.push(batch{ctx: context.WithoutCancel(ctx), events: events}, m.deliver)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		_ = m.metrics.Notify(ctx, events)
	}
}

func (m *Manager) deliver(b batch) {
	for _, n := range m.notifiers {
		if err := n.Notify(b.ctx, b.events); err != nil {
			m.logger.ErrorContext(b.ctx, "failed to notify change", "error", err, "events", len(b.events), "kind", string(b.events[0].Kind))
		}
	}
}

// Flush blocks until every batch committed before the call has been handed
// to the notifiers, or ctx is done.
func (m *Manager) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.out.wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
