// Package device is the boundary to the spa's local-network protocol.
// Drivers implement discovery and the live control surface; everything
// above this package only sees the interfaces declared here.
package device

import (
	"context"
	"errors"
	"time"
)

// Accessor keys understood by the state projector.
const (
	KeyTempUnits     = "TempUnits"
	KeyDisplayedTemp = "DisplayedTempG"
	KeyWaterTemp     = "RhWaterTemp"
	KeyRealSetpoint  = "RealSetPointG"
	KeySetpoint      = "SetpointG"
	KeyHeating       = "Heating"
)

var (
	ErrNoFacade     = errors.New("device: facade not created")
	ErrSessionClose = errors.New("device: session closed")
)

// Descriptor identifies a spa found during discovery.
type Descriptor struct {
	Name       string
	Identifier string // MAC-like identifier reported by the spa
	Address    string // host:port the spa answered from
}

// Driver discovers spas and opens sessions to them.
type Driver interface {
	Discover(ctx context.Context, host string) ([]Descriptor, error)
	Open(ctx context.Context, d Descriptor, clientID string, handler EventHandler) (Session, error)
}

// Session is one attempt to connect to a spa. A session is never reused
// after Close.
type Session interface {
	WaitForFacade(ctx context.Context) (Facade, error)
	State() SessionState
	LastPing() (time.Time, bool)
	Close() error
}

// Facade is the live readout and control surface of a connected spa.
type Facade interface {
	WaitForOneUpdate(ctx context.Context) error
	Accessor(key string) (any, bool)
	Pumps() []Pump
	Lights() []Light
	InMix() InMix             // nil when the spa has no InMix module
	WaterHeater() WaterHeater // nil when temperature control is unavailable
	ErrorState() (string, bool)
}

type Pump interface {
	Key() string // stable UI key, may be empty
	Name() string
	IsOn() bool
	Mode() string
	Modes() []string
	VariableSpeed() bool
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetMode(ctx context.Context, mode string) error
}

type Light interface {
	Name() string
	IsOn() bool
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

type InMix interface {
	Available() bool
	Zones() []Zone
}

type Zone interface {
	Key() string
	Name() string
	IsOn() bool
	RGB() (r, g, b int, ok bool)
	Brightness() int
}

// WaterHeater accepts setpoints in the spa's native unit.
type WaterHeater interface {
	SetTargetTemperature(ctx context.Context, native float64) error
}
