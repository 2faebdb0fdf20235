package device

import "spa_engine/internal/models"

// SessionState is the protocol-level state of a session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateLocatingSpas
	StateLocatedSpas
	StateConnecting
	StateSpaReady
	StateConnected
	StateErrorSpaNotFound
	StateErrorNeedsAttention
	StateErrorPingMissed
	StateErrorRFFault
)

var sessionStateNames = map[SessionState]string{
	StateIdle:                "IDLE",
	StateLocatingSpas:        "LOCATING_SPAS",
	StateLocatedSpas:         "LOCATED_SPAS",
	StateConnecting:          "CONNECTING",
	StateSpaReady:            "SPA_READY",
	StateConnected:           "CONNECTED",
	StateErrorSpaNotFound:    "ERROR_SPA_NOT_FOUND",
	StateErrorNeedsAttention: "ERROR_NEEDS_ATTENTION",
	StateErrorPingMissed:     "ERROR_PING_MISSED",
	StateErrorRFFault:        "ERROR_RF_FAULT",
}

func (s SessionState) String() string {
	if n, ok := sessionStateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// ConnectionState maps a session state onto the published connection state.
func (s SessionState) ConnectionState() string {
	switch s {
	case StateConnected:
		return models.ConnConnected
	case StateConnecting, StateLocatingSpas, StateLocatedSpas, StateSpaReady:
		return models.ConnConnecting
	case StateErrorSpaNotFound, StateErrorNeedsAttention, StateErrorPingMissed, StateErrorRFFault:
		return models.ConnError
	default:
		return models.ConnDisconnected
	}
}
