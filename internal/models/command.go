package models

import "encoding/json"

// Command types accepted by the dispatcher.
const (
	CmdLightToggle = "light.toggle"
	CmdPumpCycle   = "pump.cycle"
	CmdTempSet     = "temp.set"
)

// Command is the envelope posted by clients, e.g.
// {"type":"temp.set","payload":{"setpoint_f":102}}.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandResult is returned for every command, successful or not.
type CommandResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
