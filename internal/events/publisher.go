// Package events publishes the manager's change events to NATS JetStream so
// other services can follow fleet state without polling.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/aninnda/BikeShare-System-sub002/bms"
)

const (
	StreamName    = "BMS_EVENTS"
	SubjectPrefix = "bms."
)

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher implements bms.Notifier. Each event goes to bms.<kind>, for
// example bms.rental.completed.
type Publisher struct {
	conn *nats.Conn
	js   jetStream
}

// NewPublisher connects to NATS and makes sure the event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("bms"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// Payload is the JSON body of a published event. Only the fields of the
// changed entity are set.
type Payload struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`

	StationID string `json:"stationId,omitempty"`
	BikeID    string `json:"bikeId,omitempty"`
	UserID    string `json:"userId,omitempty"`

	Capacity      int        `json:"capacity,omitempty"`
	BikeType      string     `json:"bikeType,omitempty"`
	BikeStatus    string     `json:"bikeStatus,omitempty"`
	BatteryLevel  *int       `json:"batteryLevel,omitempty"`
	ReservationID string     `json:"reservationId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	RentalID      string     `json:"rentalId,omitempty"`
	EndStationID  string     `json:"endStationId,omitempty"`
	Status        string     `json:"status,omitempty"`
	Cost          *int64     `json:"cost,omitempty"`
}

func toPayload(ev bms.Event) Payload {
	p := Payload{Kind: string(ev.Kind), At: ev.At}
	switch {
	case ev.Station != nil:
		p.StationID = ev.Station.ID
		p.Capacity = ev.Station.Capacity
	case ev.Bike != nil:
		p.BikeID = ev.Bike.ID
		p.BikeType = ev.Bike.Type.String()
		p.BikeStatus = string(ev.Bike.Status)
		p.StationID = ev.Bike.StationID.String
		if ev.Bike.BatteryLevel.Valid {
			level := int(ev.Bike.BatteryLevel.Int32)
			p.BatteryLevel = &level
		}
	case ev.Reservation != nil:
		r := ev.Reservation
		p.ReservationID = r.ID.String()
		p.UserID = r.UserID
		p.BikeID = r.BikeID
		p.StationID = r.StationID
		p.Status = string(r.Status)
		expires := r.ExpiresAt
		p.ExpiresAt = &expires
	case ev.Rental != nil:
		r := ev.Rental
		p.RentalID = r.ID.String()
		p.UserID = r.UserID
		p.BikeID = r.BikeID
		p.StationID = r.StartStationID
		p.EndStationID = r.EndStationID.String
		p.Status = string(r.Status)
		if r.Cost.Valid {
			cost := r.Cost.Int64
			p.Cost = &cost
		}
	}
	return p
}

func (p *Publisher) Notify(_ context.Context, events []bms.Event) error {
	for _, ev := range events {
		data, err := json.Marshal(toPayload(ev))
		if err != nil {
			return err
		}
		if _, err := p.js.Publish(SubjectPrefix+string(ev.Kind), data); err != nil {
			return fmt.Errorf("publish %s: %w", ev.Kind, err)
		}
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
