// Package bike
package bike

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/aninnda/BikeShare-System-sub002/internal/apperr"
)

var (
	ErrInvalidStatus  = apperr.New(apperr.InvalidArgument, "INVALID_BIKE_STATUS", "invalid bike status")
	ErrInvalidType    = apperr.New(apperr.InvalidArgument, "INVALID_BIKE_TYPE", "invalid bike type")
	ErrInvalidBattery = apperr.New(apperr.InvalidArgument, "INVALID_BATTERY_LEVEL", "invalid battery level")
)

type Type int

const (
	Standard Type = iota
	EBike
)

func (t Type) String() string {
	switch t {
	case Standard:
		return "STANDARD"
	case EBike:
		return "EBIKE"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType accepts the names produced by String.
func ParseType(s string) (Type, error) {
	switch s {
	case "STANDARD", "standard":
		return Standard, nil
	case "EBIKE", "ebike":
		return EBike, nil
	}
	return 0, ErrInvalidType.Withf("invalid bike type %q", s)
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *Type) Scan(i any) error {
	switch v := i.(type) {
	case string:
		p, err := ParseType(v)
		if err != nil {
			return err
		}
		*t = p
		return nil
	case []byte:
		return t.Scan(string(v))
	}
	return fmt.Errorf("bike: cannot scan %T into Type", i)
}

func (t Type) Value() (driver.Value, error) {
	return t.String(), nil
}

// Status is the bike's position in its lifecycle. Status changes are the
// only way a bike's availability changes.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusReserved    Status = "RESERVED"
	StatusOnTrip      Status = "ON_TRIP"
	StatusMaintenance Status = "MAINTENANCE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusOnTrip, StatusMaintenance:
		return true
	}
	return false
}

// Bike is a passive record. Invariants spanning bikes and stations are
// enforced by the station and bms packages, which are the only writers of
// the status.
type Bike struct {
	ID   string
	Type Type
	// BatteryLevel is a percentage and is only set for e-bikes.
	BatteryLevel *int

	status Status
}

// New returns an AVAILABLE bike.
func New(id string, t Type) (*Bike, error) {
	if t != Standard && t != EBike {
		return nil, ErrInvalidType.Withf("invalid bike type %d", int(t))
	}
	return &Bike{ID: id, Type: t, status: StatusAvailable}, nil
}

func (b *Bike) Status() Status {
	return b.status
}

// SetStatus writes the status unconditionally; only the enumeration is checked.
func (b *Bike) SetStatus(s Status) error {
	if !s.Valid() {
		return ErrInvalidStatus.Withf("invalid bike status %q", s)
	}
	b.status = s
	return nil
}

func (b *Bike) SetBatteryLevel(level int) error {
	if b.Type != EBike {
		return ErrInvalidBattery.Withf("bike %s is not an e-bike", b.ID)
	}
	if level < 0 || level > 100 {
		return ErrInvalidBattery.Withf("battery level %d out of range 0-100", level)
	}
	b.BatteryLevel = &level
	return nil
}

// Clone returns a copy that shares no memory with b.
func (b *Bike) Clone() Bike {
	c := *b
	if b.BatteryLevel != nil {
		level := *b.BatteryLevel
		c.BatteryLevel = &level
	}
	return c
}

// MarshalJSON exposes the unexported status.
func (b Bike) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string `json:"id"`
		Type         Type   `json:"type"`
		Status       Status `json:"status"`
		BatteryLevel *int   `json:"batteryLevel,omitempty"`
	}{b.ID, b.Type, b.status, b.BatteryLevel})
}
