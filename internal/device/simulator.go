package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ----------- Simulation constants -----------
const (
	AmbientC           = 20.0  // ambient temperature °C
	HeatRateCPerSec    = 0.05  // °C per second while the heater runs
	CoolRateCPerSec    = 0.01  // °C per second drift toward ambient
	SetpointToleranceC = 0.5   // °C hysteresis band around the setpoint
	initialWaterC      = 36.0  // water temperature at session start
	initialSetpointC   = 38.0  // setpoint at session start
	simulatorPort      = 10022 // port the real in.touch2 module answers on
	defaultSimTick     = time.Second
)

const simNoErrors = "No errors or warnings"

// Simulator is an in-process Driver that behaves like a single spa with two
// pumps, one light, an InMix zone group and a Celsius water heater. Any
// non-empty host discovers it.
type Simulator struct {
	tick time.Duration
}

// NewSimulator returns a simulator advancing its thermal model every tick.
func NewSimulator(tick time.Duration) *Simulator {
	if tick <= 0 {
		tick = defaultSimTick
	}
	return &Simulator{tick: tick}
}

func (s *Simulator) Discover(ctx context.Context, host string) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, nil
	}
	return []Descriptor{{
		Name:       "Simulated Spa",
		Identifier: "SIM0000000001",
		Address:    fmt.Sprintf("%s:%d", host, simulatorPort),
	}}, nil
}

func (s *Simulator) Open(ctx context.Context, d Descriptor, clientID string, handler EventHandler) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if handler == nil {
		handler = func(Event) {}
	}
	ss := &simSession{
		handler:   handler,
		tick:      s.tick,
		state:     StateConnecting,
		waterC:    initialWaterC,
		setpointC: initialSetpointC,
		pumps: []simPumpState{
			{key: "P1", name: "Pump 1", variable: true, mode: "OFF"},
			{key: "P2", name: "Pump 2", modes: []string{"LOW", "HIGH", "OFF"}, mode: "OFF"},
		},
		zones: []simZoneState{
			{key: "zone1", name: "Zone 1", rgb: [3]int{0, 120, 255}, brightness: 100},
			{key: "zone2", name: "Zone 2", rgb: [3]int{255, 80, 0}, brightness: 60},
		},
		ready:   make(chan struct{}),
		updated: make(chan struct{}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go ss.run()
	return ss, nil
}

type simPumpState struct {
	key, name string
	variable  bool
	on        bool
	mode      string
	modes     []string
}

type simZoneState struct {
	key, name  string
	on         bool
	rgb        [3]int
	brightness int
}

type simSession struct {
	handler EventHandler
	tick    time.Duration

	mu         sync.Mutex
	state      SessionState
	lastPing   time.Time
	lastUpdate time.Time
	waterC     float64
	setpointC  float64
	heating    bool
	lightOn    bool
	pumps      []simPumpState
	zones      []simZoneState

	ready      chan struct{}
	updated    chan struct{}
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
	updateOnce sync.Once
}

// run ticks at the session interval until Close.
func (s *simSession) run() {
	defer close(s.stopped)
	t := time.NewTicker(s.tick)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-t.C:
			s.step(now)
		}
	}
}

// step advances the session one tick: first tick connects, later ticks
// advance the thermal model.
func (s *simSession) step(now time.Time) {
	s.mu.Lock()
	prev := s.state
	if s.state != StateConnected {
		s.state = StateConnected
		s.lastUpdate = now
	} else {
		elapsed := now.Sub(s.lastUpdate).Seconds()
		s.advance(elapsed)
		s.lastUpdate = now
	}
	s.lastPing = now
	s.mu.Unlock()

	if prev != StateConnected {
		close(s.ready)
		s.handler(StateChanged{From: prev, To: StateConnected})
		return
	}
	s.updateOnce.Do(func() { close(s.updated) })
}

// advance heats toward the setpoint with hysteresis, otherwise drifts
// toward ambient. Callers hold s.mu.
func (s *simSession) advance(elapsed float64) {
	if elapsed <= 0 {
		return
	}
	switch {
	case s.waterC < s.setpointC-SetpointToleranceC:
		s.heating = true
	case s.waterC >= s.setpointC:
		s.heating = false
	}
	if s.heating {
		s.waterC = minFloat(s.waterC+HeatRateCPerSec*elapsed, s.setpointC)
		return
	}
	if s.waterC > AmbientC {
		s.waterC = maxFloat(s.waterC-CoolRateCPerSec*elapsed, AmbientC)
	}
}

func (s *simSession) WaitForFacade(ctx context.Context) (Facade, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrNoFacade
	case <-s.ready:
		return &simFacade{s: s}, nil
	}
}

func (s *simSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *simSession) LastPing() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPing, !s.lastPing.IsZero()
}

func (s *simSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.stopped
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	})
	return nil
}

func (s *simSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ----------- Facade -----------

type simFacade struct {
	s *simSession
}

func (f *simFacade) WaitForOneUpdate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.s.done:
		return ErrSessionClose
	case <-f.s.updated:
		return nil
	}
}

func (f *simFacade) Accessor(key string) (any, bool) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	switch key {
	case KeyTempUnits:
		return "C", true
	case KeyDisplayedTemp:
		return roundHalf(f.s.waterC), true
	case KeyRealSetpoint:
		return f.s.setpointC, true
	case KeyHeating:
		return f.s.heating, true
	default:
		return nil, false
	}
}

func (f *simFacade) Pumps() []Pump {
	f.s.mu.Lock()
	n := len(f.s.pumps)
	f.s.mu.Unlock()
	out := make([]Pump, n)
	for i := range out {
		out[i] = &simPump{s: f.s, idx: i}
	}
	return out
}

func (f *simFacade) Lights() []Light {
	return []Light{&simLight{s: f.s}}
}

func (f *simFacade) InMix() InMix {
	return &simInMix{s: f.s}
}

func (f *simFacade) WaterHeater() WaterHeater {
	return &simHeater{s: f.s}
}

func (f *simFacade) ErrorState() (string, bool) {
	return simNoErrors, true
}

// ----------- Actuators -----------

type simPump struct {
	s   *simSession
	idx int
}

func (p *simPump) get() simPumpState {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.pumps[p.idx]
}

func (p *simPump) Key() string         { return p.get().key }
func (p *simPump) Name() string        { return p.get().name }
func (p *simPump) IsOn() bool          { return p.get().on }
func (p *simPump) Mode() string        { return p.get().mode }
func (p *simPump) VariableSpeed() bool { return p.get().variable }

func (p *simPump) Modes() []string {
	return append([]string(nil), p.get().modes...)
}

func (p *simPump) TurnOn(ctx context.Context) error {
	return p.update(ctx, func(ps *simPumpState) error {
		ps.on = true
		ps.mode = "HIGH"
		if len(ps.modes) > 0 {
			ps.mode = ps.modes[0]
		}
		return nil
	})
}

func (p *simPump) TurnOff(ctx context.Context) error {
	return p.update(ctx, func(ps *simPumpState) error {
		ps.on = false
		ps.mode = "OFF"
		return nil
	})
}

func (p *simPump) SetMode(ctx context.Context, mode string) error {
	return p.update(ctx, func(ps *simPumpState) error {
		for _, m := range ps.modes {
			if m == mode {
				ps.mode = mode
				ps.on = mode != "OFF"
				return nil
			}
		}
		return fmt.Errorf("pump %s: unsupported mode %q", ps.name, mode)
	})
}

func (p *simPump) update(ctx context.Context, fn func(*simPumpState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.s.closed() {
		return ErrSessionClose
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return fn(&p.s.pumps[p.idx])
}

type simLight struct {
	s *simSession
}

func (l *simLight) Name() string { return "Lights" }

func (l *simLight) IsOn() bool {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.lightOn
}

func (l *simLight) TurnOn(ctx context.Context) error  { return l.set(ctx, true) }
func (l *simLight) TurnOff(ctx context.Context) error { return l.set(ctx, false) }

func (l *simLight) set(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.s.closed() {
		return ErrSessionClose
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.lightOn = on
	for i := range l.s.zones {
		l.s.zones[i].on = on
	}
	return nil
}

type simInMix struct {
	s *simSession
}

func (m *simInMix) Available() bool { return true }

func (m *simInMix) Zones() []Zone {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]Zone, len(m.s.zones))
	for i, z := range m.s.zones {
		out[i] = simZone(z)
	}
	return out
}

// simZone is a value snapshot of a zone.
type simZone simZoneState

func (z simZone) Key() string     { return z.key }
func (z simZone) Name() string    { return z.name }
func (z simZone) IsOn() bool      { return z.on }
func (z simZone) Brightness() int { return z.brightness }

func (z simZone) RGB() (int, int, int, bool) {
	return z.rgb[0], z.rgb[1], z.rgb[2], true
}

type simHeater struct {
	s *simSession
}

func (h *simHeater) SetTargetTemperature(ctx context.Context, native float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.s.closed() {
		return ErrSessionClose
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.s.setpointC = native
	return nil
}

// helpers
func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}

func roundHalf(v float64) float64 {
	if v < 0 {
		return -roundHalf(-v)
	}
	return float64(int(v*2+0.5)) / 2
}
