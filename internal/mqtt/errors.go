package mqtt

import "errors"

// Errors returned by the bridge. Use errors.Is to check for them.
var (
	// ErrDisabled is returned by NewBridge when no broker is configured.
	ErrDisabled = errors.New("mqtt: broker not configured")

	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrInvalidTopic     = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS       = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrTimeout          = errors.New("mqtt: operation timed out")
)
