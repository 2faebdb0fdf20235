package models

import "time"

// Connection states published in Meta.ConnectionState.
const (
	ConnDisconnected = "DISCONNECTED"
	ConnConnecting   = "CONNECTING"
	ConnConnected    = "CONNECTED"
	ConnError        = "ERROR"
)

// SpaState is the published snapshot of the spa. A value is never mutated
// after it has been handed to readers; writers build a new one.
type SpaState struct {
	Temps        Temps        `json:"temps"`
	Heater       Heater       `json:"heater"`
	Pumps        []Pump       `json:"pumps"`
	Lights       Lights       `json:"lights"`
	Errors       []SpaError   `json:"errors"`
	Capabilities Capabilities `json:"capabilities"`
	Meta         Meta         `json:"meta"`
}

type Temps struct {
	CurrentF  *float64 `json:"current_f"`
	SetpointF *float64 `json:"setpoint_f"`
	Units     string   `json:"units,omitempty"` // native unit reported by the spa, "C" or "F"
}

type Heater struct {
	On bool `json:"on"`
}

type Pump struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	State string `json:"state"` // on | off
	Speed string `json:"speed"`
}

type Lights struct {
	On       bool       `json:"on"`
	ColorRGB *RGB       `json:"color_rgb,omitempty"`
	InMix    *InMixInfo `json:"inmix,omitempty"`
}

// RGB marshals as a [r,g,b] triple.
type RGB [3]int

type InMixInfo struct {
	Zones []Zone `json:"zones"`
}

type Zone struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	On         bool   `json:"on"`
	RGB        *RGB   `json:"rgb"`
	Brightness int    `json:"brightness"`
}

type SpaError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type Capabilities struct {
	CanSetTemp   bool    `json:"canSetTemp"`
	PumpsCount   int     `json:"pumpsCount"`
	HasLights    bool    `json:"hasLights"`
	HasInMix     bool    `json:"hasInMix"`
	MaxSetpointF float64 `json:"maxSetpointF"`
}

type Meta struct {
	LastUpdated     time.Time  `json:"lastUpdated"`
	ConnectionState string     `json:"connectionState"`
	LastError       *string    `json:"lastError"`
	LastErrorAt     *time.Time `json:"lastErrorAt"`
	LastContactAt   *time.Time `json:"lastContactAt"`
}

// Clone returns a deep copy that shares no memory with s.
func (s SpaState) Clone() SpaState {
	out := s
	out.Temps.CurrentF = cloneFloat(s.Temps.CurrentF)
	out.Temps.SetpointF = cloneFloat(s.Temps.SetpointF)
	// empty lists stay non-nil so they encode as [] rather than null
	if s.Pumps != nil {
		out.Pumps = make([]Pump, len(s.Pumps))
		copy(out.Pumps, s.Pumps)
	}
	if s.Errors != nil {
		out.Errors = make([]SpaError, len(s.Errors))
		copy(out.Errors, s.Errors)
	}
	out.Lights.ColorRGB = cloneRGB(s.Lights.ColorRGB)
	if s.Lights.InMix != nil {
		zones := make([]Zone, len(s.Lights.InMix.Zones))
		for i, z := range s.Lights.InMix.Zones {
			z.RGB = cloneRGB(z.RGB)
			zones[i] = z
		}
		out.Lights.InMix = &InMixInfo{Zones: zones}
	}
	if s.Meta.LastError != nil {
		msg := *s.Meta.LastError
		out.Meta.LastError = &msg
	}
	out.Meta.LastErrorAt = cloneTime(s.Meta.LastErrorAt)
	out.Meta.LastContactAt = cloneTime(s.Meta.LastContactAt)
	return out
}

// InitialSpaState is the document published before any device contact.
func InitialSpaState(now time.Time, maxSetpointF float64) SpaState {
	return SpaState{
		Pumps:        []Pump{},
		Errors:       []SpaError{},
		Capabilities: Capabilities{MaxSetpointF: maxSetpointF},
		Meta: Meta{
			LastUpdated:     now,
			ConnectionState: ConnDisconnected,
		},
	}
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneRGB(c *RGB) *RGB {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
