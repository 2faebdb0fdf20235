package service

import (
	"fmt"
	"strings"
	"time"

	"spa_engine/internal/device"
	"spa_engine/internal/models"
)

// Error-state values the spa reports when nothing is wrong.
var noFaultSentinels = map[string]bool{
	"None":                  true,
	"No errors or warnings": true,
}

const severityUnknown = "unknown"

// projectMeta carries the non-device inputs of a projection.
type projectMeta struct {
	now          time.Time
	connState    string
	lastError    *string
	lastErrorAt  *time.Time
	lastContact  *time.Time
	maxSetpointF float64
}

// projectState builds a complete State Document from a live facade.
func projectState(f device.Facade, m projectMeta) models.SpaState {
	units := ""
	if v, ok := f.Accessor(device.KeyTempUnits); ok && v != nil {
		units = fmt.Sprint(v)
	}

	current := accessorFloat(f, device.KeyDisplayedTemp, device.KeyWaterTemp)
	setpoint := accessorFloat(f, device.KeyRealSetpoint, device.KeySetpoint)

	heaterOn := false
	if v, ok := f.Accessor(device.KeyHeating); ok {
		heaterOn = toBool(v)
	}

	pumps := projectPumps(f.Pumps())
	lights := f.Lights()
	lightState, hasInMix := projectLights(lights, f.InMix())

	return models.SpaState{
		Temps: models.Temps{
			CurrentF:  toFahrenheitPtr(current, units),
			SetpointF: toFahrenheitPtr(setpoint, units),
			Units:     units,
		},
		Heater: models.Heater{On: heaterOn},
		Pumps:  pumps,
		Lights: lightState,
		Errors: projectErrors(f.ErrorState()),
		Capabilities: models.Capabilities{
			CanSetTemp:   setpoint != nil,
			PumpsCount:   len(pumps),
			HasLights:    len(lights) > 0,
			HasInMix:     hasInMix,
			MaxSetpointF: m.maxSetpointF,
		},
		Meta: models.Meta{
			LastUpdated:     m.now,
			ConnectionState: m.connState,
			LastError:       m.lastError,
			LastErrorAt:     m.lastErrorAt,
			LastContactAt:   m.lastContact,
		},
	}
}

// accessorFloat resolves the first key that exists. A present accessor
// whose value is not numeric yields nil rather than falling through.
func accessorFloat(f device.Facade, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := f.Accessor(k)
		if !ok {
			continue
		}
		if n, ok := toFloat(v); ok {
			return &n
		}
		return nil
	}
	return nil
}

// pumpID prefers the stable key, then the name, then a 1-based position.
func pumpID(p device.Pump, idx int) string {
	if k := p.Key(); k != "" {
		return k
	}
	if n := p.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("pump-%d", idx+1)
}

func projectPumps(pumps []device.Pump) []models.Pump {
	out := make([]models.Pump, 0, len(pumps))
	for i, p := range pumps {
		state := "off"
		if p.IsOn() {
			state = "on"
		}
		out = append(out, models.Pump{
			ID:    pumpID(p, i),
			Label: p.Name(),
			State: state,
			Speed: p.Mode(),
		})
	}
	return out
}

func projectLights(lights []device.Light, mix device.InMix) (models.Lights, bool) {
	var out models.Lights
	for _, l := range lights {
		if l.IsOn() {
			out.On = true
			break
		}
	}
	if mix == nil || !mix.Available() {
		return out, false
	}

	zones := mix.Zones()
	info := &models.InMixInfo{Zones: make([]models.Zone, 0, len(zones))}
	for _, z := range zones {
		mz := models.Zone{
			Key:        z.Key(),
			Name:       z.Name(),
			On:         z.IsOn(),
			Brightness: z.Brightness(),
		}
		if r, g, b, ok := z.RGB(); ok {
			mz.RGB = &models.RGB{r, g, b}
		}
		info.Zones = append(info.Zones, mz)
	}
	out.InMix = info
	if len(info.Zones) > 0 && info.Zones[0].RGB != nil {
		c := *info.Zones[0].RGB
		out.ColorRGB = &c
	}
	return out, true
}

// projectErrors splits the combined error-state string into entries.
func projectErrors(state string, ok bool) []models.SpaError {
	out := []models.SpaError{}
	if !ok || state == "" || noFaultSentinels[state] {
		return out
	}
	for _, tok := range strings.Split(state, ",") {
		code := strings.TrimSpace(tok)
		if code == "" || noFaultSentinels[code] {
			continue
		}
		out = append(out, models.SpaError{Code: code, Message: code, Severity: severityUnknown})
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		s := strings.ToUpper(strings.TrimSpace(b))
		return s == "ON" || s == "TRUE" || s == "1"
	default:
		n, ok := toFloat(v)
		return ok && n != 0
	}
}
