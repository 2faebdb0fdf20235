package device

import "fmt"

// Event is a lifecycle notification raised by a session. The set of
// implementations is closed; consumers type-switch over them.
type Event interface {
	isEvent()
	Name() string
}

// EventHandler receives session events. It may be called from driver
// goroutines and must not block.
type EventHandler func(Event)

type (
	SpaNotFound             struct{ Host string }
	ConfigVersionMissing    struct{}
	LogVersionMissing       struct{}
	SpaPackMissing          struct{}
	ConnectionRetryExceeded struct{}
	ProtocolRetryExceeded   struct{}
	RFError                 struct{ Count int }
	TooManyRFErrors         struct{ Count int }
	FacadeTeardown          struct{}
	StateChanged            struct{ From, To SessionState }
)

func (SpaNotFound) isEvent()             {}
func (ConfigVersionMissing) isEvent()    {}
func (LogVersionMissing) isEvent()       {}
func (SpaPackMissing) isEvent()          {}
func (ConnectionRetryExceeded) isEvent() {}
func (ProtocolRetryExceeded) isEvent()   {}
func (RFError) isEvent()                 {}
func (TooManyRFErrors) isEvent()         {}
func (FacadeTeardown) isEvent()          {}
func (StateChanged) isEvent()            {}

func (SpaNotFound) Name() string             { return "SPA_NOT_FOUND" }
func (ConfigVersionMissing) Name() string    { return "CONNECTION_CANNOT_FIND_CONFIG_VERSION" }
func (LogVersionMissing) Name() string       { return "CONNECTION_CANNOT_FIND_LOG_VERSION" }
func (SpaPackMissing) Name() string          { return "CONNECTION_CANNOT_FIND_SPA_PACK" }
func (ConnectionRetryExceeded) Name() string { return "CONNECTION_PROTOCOL_RETRY_TIME_EXCEEDED" }
func (ProtocolRetryExceeded) Name() string   { return "ERROR_PROTOCOL_RETRY_TIME_EXCEEDED" }
func (RFError) Name() string                 { return "ERROR_RF_ERROR" }
func (TooManyRFErrors) Name() string         { return "ERROR_TOO_MANY_RF_ERRORS" }
func (FacadeTeardown) Name() string          { return "CLIENT_FACADE_TEARDOWN" }
func (StateChanged) Name() string            { return "STATE_CHANGED" }

func (e StateChanged) String() string {
	return fmt.Sprintf("%s from=%s to=%s", e.Name(), e.From, e.To)
}
