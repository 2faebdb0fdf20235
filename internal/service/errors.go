package service

import (
	"errors"
	"fmt"
)

// ErrorClass groups connection failures for reporting.
type ErrorClass string

const (
	ClassConfig    ErrorClass = "config"
	ClassDiscovery ErrorClass = "discovery"
	ClassConnect   ErrorClass = "connect"
	ClassSession   ErrorClass = "session"
)

// ConnError is a classified connection failure. Msg is what ends up in
// meta.lastError.
type ConnError struct {
	Class ErrorClass
	Msg   string
	Err   error
}

func (e *ConnError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConnError) Unwrap() error { return e.Err }

var (
	errHostNotSet  = &ConnError{Class: ClassConfig, Msg: "INTOUCH2_HOST not set"}
	errSpaNotFound = &ConnError{Class: ClassDiscovery, Msg: "Spa not found at configured host"}
)

// classify turns any loop failure into a ConnError. Unclassified errors are
// session errors.
func classify(err error) *ConnError {
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConnError{Class: ClassSession, Msg: "Session error", Err: err}
}

func panicError(r any) *ConnError {
	return &ConnError{Class: ClassSession, Msg: "Session error", Err: fmt.Errorf("panic: %v", r)}
}

// Command failures. The messages are returned verbatim to clients.
var (
	ErrNotConnected     = errors.New("Spa is not connected")
	ErrUnknownCommand   = errors.New("Unknown command")
	ErrInvalidPayload   = errors.New("Invalid payload")
	ErrNoLights         = errors.New("No lights available")
	ErrNoPumps          = errors.New("No pumps available")
	ErrPumpNotFound     = errors.New("Pump not found")
	ErrSetpointRequired = errors.New("setpoint_f is required")
	ErrNoHeater         = errors.New("Temperature control not available")
	ErrRateLimited      = errors.New("Command rate limited")
)
