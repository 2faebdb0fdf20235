package models

import "time"

// Event types recorded in the event log.
const (
	EventConnecting    = "CONNECTING"
	EventConnected     = "CONNECTED"
	EventDisconnected  = "DISCONNECTED"
	EventError         = "ERROR"
	EventCommand       = "COMMAND"
	EventCommandFailed = "COMMAND_FAILED"
)

// SpaEvent is a single log entry.
type SpaEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECTING | CONNECTED | DISCONNECTED | ERROR | COMMAND | COMMAND_FAILED
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
