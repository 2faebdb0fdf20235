package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"spa_engine/internal/device"
	"spa_engine/internal/models"
)

type lightTogglePayload struct {
	On *bool `json:"on"`
}

type pumpCyclePayload struct {
	ID string `json:"id"`
}

type tempSetPayload struct {
	SetpointF *float64 `json:"setpoint_f"`
}

type commandFunc func(c *SpaClient, ctx context.Context, f device.Facade, payload json.RawMessage) error

var commandHandlers = map[string]commandFunc{
	models.CmdLightToggle: (*SpaClient).toggleLights,
	models.CmdPumpCycle:   (*SpaClient).cyclePump,
	models.CmdTempSet:     (*SpaClient).setTemperature,
}

// Command executes one client action against the live session. Commands
// run one at a time; a successful command re-projects state before
// returning so the next read reflects it.
func (c *SpaClient) Command(ctx context.Context, cmd models.Command) models.CommandResult {
	handler, ok := commandHandlers[cmd.Type]
	if !ok {
		c.log.Warnw("spa_command_unknown", "type", cmd.Type)
		return c.commandDone(cmd.Type, ErrUnknownCommand)
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	ls := c.currentSession()
	if ls == nil || ls.facade == nil {
		return c.commandDone(cmd.Type, ErrNotConnected)
	}

	now := c.now()
	if limit := c.cfg().CommandRateLimit; limit > 0 {
		if !c.lastCmd.IsZero() && now.Sub(c.lastCmd) < limit {
			return c.commandDone(cmd.Type, ErrRateLimited)
		}
	}

	if err := handler(c, ctx, ls.facade, cmd.Payload); err != nil {
		return c.commandDone(cmd.Type, err)
	}
	// only applied commands open a new rate-limit window
	c.lastCmd = now
	c.project(ls)
	return c.commandDone(cmd.Type, nil)
}

// commandDone logs, records and reports the outcome of a command.
func (c *SpaClient) commandDone(cmdType string, err error) models.CommandResult {
	for _, o := range c.observers {
		o.CommandHandled(cmdType, err)
	}
	if err != nil {
		c.log.Warnw("spa_command_failed", "type", cmdType, "err", err)
		if cmdType != "" && !errors.Is(err, ErrUnknownCommand) {
			c.record(models.EventCommandFailed, cmdType+": "+err.Error(), map[string]any{"type": cmdType})
		}
		return models.CommandResult{OK: false, Error: err.Error()}
	}
	c.log.Infow("spa_command_ok", "type", cmdType)
	c.record(models.EventCommand, cmdType, map[string]any{"type": cmdType})
	return models.CommandResult{OK: true}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// toggleLights applies one desired state to every light. Without an
// explicit "on" the first light's state is flipped.
func (c *SpaClient) toggleLights(ctx context.Context, f device.Facade, raw json.RawMessage) error {
	var p lightTogglePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	lights := f.Lights()
	if len(lights) == 0 {
		return ErrNoLights
	}
	want := !lights[0].IsOn()
	if p.On != nil {
		want = *p.On
	}
	for _, l := range lights {
		var err error
		if want {
			err = l.TurnOn(ctx)
		} else {
			err = l.TurnOff(ctx)
		}
		if err != nil {
			return fmt.Errorf("light %q: %w", l.Name(), err)
		}
	}
	return nil
}

// cyclePump steps the selected pump to its next mode.
func (c *SpaClient) cyclePump(ctx context.Context, f device.Facade, raw json.RawMessage) error {
	var p pumpCyclePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	pumps := f.Pumps()
	if len(pumps) == 0 {
		return ErrNoPumps
	}

	pump := pumps[0]
	if p.ID != "" {
		pump = nil
		for i, cand := range pumps {
			if pumpID(cand, i) == p.ID {
				pump = cand
				break
			}
		}
		if pump == nil {
			return fmt.Errorf("%w: %s", ErrPumpNotFound, p.ID)
		}
	}

	modes := pump.Modes()
	if pump.VariableSpeed() || len(modes) == 0 {
		if pump.IsOn() {
			return pump.TurnOff(ctx)
		}
		return pump.TurnOn(ctx)
	}

	next := nextMode(modes, pump.Mode())
	if strings.EqualFold(next, "OFF") {
		return pump.TurnOff(ctx)
	}
	return pump.SetMode(ctx, next)
}

// nextMode returns the mode after current, wrapping around. An unknown
// current mode starts from the first entry.
func nextMode(modes []string, current string) string {
	for i, m := range modes {
		if strings.EqualFold(m, current) {
			return modes[(i+1)%len(modes)]
		}
	}
	return modes[0]
}

// setTemperature clamps the Fahrenheit setpoint and issues it in the
// spa's native unit.
func (c *SpaClient) setTemperature(ctx context.Context, f device.Facade, raw json.RawMessage) error {
	var p tempSetPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.SetpointF == nil {
		return ErrSetpointRequired
	}
	sp := *p.SetpointF
	if math.IsNaN(sp) || math.IsInf(sp, 0) {
		return fmt.Errorf("%w: setpoint_f must be a finite number", ErrInvalidPayload)
	}
	if ceiling := c.cfg().MaxSetpointF; ceiling > 0 && sp > ceiling {
		sp = ceiling
	}

	heater := f.WaterHeater()
	if heater == nil {
		return ErrNoHeater
	}
	units := ""
	if v, ok := f.Accessor(device.KeyTempUnits); ok && v != nil {
		units = fmt.Sprint(v)
	}
	return heater.SetTargetTemperature(ctx, FromFahrenheit(sp, units))
}
