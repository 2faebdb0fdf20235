package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spa_engine/internal/config"
	"spa_engine/internal/device"
	"spa_engine/internal/models"
)

// ----------- actuators -----------

type fakePump struct {
	mu       sync.Mutex
	key      string
	name     string
	on       bool
	mode     string
	modes    []string
	variable bool
	calls    []string

	inflight   atomic.Int32
	overlapped atomic.Bool
	delay      time.Duration
}

func (p *fakePump) Key() string  { return p.key }
func (p *fakePump) Name() string { return p.name }

func (p *fakePump) IsOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

func (p *fakePump) Mode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *fakePump) Modes() []string     { return p.modes }
func (p *fakePump) VariableSpeed() bool { return p.variable }

func (p *fakePump) act(call string, fn func()) error {
	if p.inflight.Add(1) > 1 {
		p.overlapped.Store(true)
	}
	defer p.inflight.Add(-1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	fn()
	return nil
}

func (p *fakePump) TurnOn(context.Context) error {
	return p.act("on", func() { p.on = true })
}

func (p *fakePump) TurnOff(context.Context) error {
	return p.act("off", func() { p.on = false; p.mode = "OFF" })
}

func (p *fakePump) SetMode(_ context.Context, mode string) error {
	return p.act("mode:"+mode, func() { p.mode = mode; p.on = true })
}

func (p *fakePump) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakeLight struct {
	mu   sync.Mutex
	name string
	on   bool
}

func (l *fakeLight) Name() string { return l.name }

func (l *fakeLight) IsOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *fakeLight) TurnOn(context.Context) error  { l.mu.Lock(); l.on = true; l.mu.Unlock(); return nil }
func (l *fakeLight) TurnOff(context.Context) error { l.mu.Lock(); l.on = false; l.mu.Unlock(); return nil }

type fakeZone struct {
	key, name  string
	on         bool
	rgb        *[3]int
	brightness int
}

func (z fakeZone) Key() string     { return z.key }
func (z fakeZone) Name() string    { return z.name }
func (z fakeZone) IsOn() bool      { return z.on }
func (z fakeZone) Brightness() int { return z.brightness }

func (z fakeZone) RGB() (int, int, int, bool) {
	if z.rgb == nil {
		return 0, 0, 0, false
	}
	return z.rgb[0], z.rgb[1], z.rgb[2], true
}

type fakeInMix struct {
	available bool
	zones     []fakeZone
}

func (m *fakeInMix) Available() bool { return m.available }

func (m *fakeInMix) Zones() []device.Zone {
	out := make([]device.Zone, len(m.zones))
	for i, z := range m.zones {
		out[i] = z
	}
	return out
}

type fakeHeater struct {
	mu     sync.Mutex
	target *float64
	err    error
}

func (h *fakeHeater) SetTargetTemperature(_ context.Context, native float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.target = &native
	return nil
}

func (h *fakeHeater) Target() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.target == nil {
		return 0, false
	}
	return *h.target, true
}

// ----------- facade -----------

type fakeFacade struct {
	mu        sync.Mutex
	accessors map[string]any
	pumps     []*fakePump
	lights    []*fakeLight
	mix       *fakeInMix
	heater    *fakeHeater
	errState  string
	errOK     bool
	panicMsg  string
	updateErr error

	// blockUpdate makes WaitForOneUpdate wait for ctx.
	blockUpdate bool
	waiting     atomic.Bool
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{
		accessors: map[string]any{
			device.KeyTempUnits:     "C",
			device.KeyDisplayedTemp: 37.0,
			device.KeyRealSetpoint:  38.0,
			device.KeyHeating:       true,
		},
		pumps: []*fakePump{
			{key: "P1", name: "Pump 1", variable: true},
			{key: "P2", name: "Pump 2", modes: []string{"LOW", "HIGH", "OFF"}, mode: "LOW", on: true},
		},
		lights:   []*fakeLight{{name: "Lights"}},
		heater:   &fakeHeater{},
		errState: "No errors or warnings",
		errOK:    true,
	}
}

func (f *fakeFacade) WaitForOneUpdate(ctx context.Context) error {
	if f.blockUpdate {
		f.waiting.Store(true)
		<-ctx.Done()
		return ctx.Err()
	}
	return f.updateErr
}

func (f *fakeFacade) Accessor(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	v, ok := f.accessors[key]
	return v, ok
}

func (f *fakeFacade) setAccessor(key string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessors[key] = v
}

func (f *fakeFacade) setPanic(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicMsg = msg
}

func (f *fakeFacade) Pumps() []device.Pump {
	out := make([]device.Pump, len(f.pumps))
	for i, p := range f.pumps {
		out[i] = p
	}
	return out
}

func (f *fakeFacade) Lights() []device.Light {
	out := make([]device.Light, len(f.lights))
	for i, l := range f.lights {
		out[i] = l
	}
	return out
}

func (f *fakeFacade) InMix() device.InMix {
	if f.mix == nil {
		return nil
	}
	return f.mix
}

func (f *fakeFacade) WaterHeater() device.WaterHeater {
	if f.heater == nil {
		return nil
	}
	return f.heater
}

func (f *fakeFacade) ErrorState() (string, bool) { return f.errState, f.errOK }

// ----------- session and driver -----------

type fakeSession struct {
	mu        sync.Mutex
	facade    device.Facade
	facadeErr error
	state     device.SessionState
	ping      time.Time
	closed    bool
	handler   device.EventHandler
	clientID  string

	// blockFacade makes WaitForFacade wait for ctx.
	blockFacade bool
	waiting     atomic.Bool
}

func (s *fakeSession) WaitForFacade(ctx context.Context) (device.Facade, error) {
	if s.blockFacade {
		s.waiting.Store(true)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.facadeErr != nil {
		return nil, s.facadeErr
	}
	return s.facade, nil
}

func (s *fakeSession) State() device.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) setState(st device.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *fakeSession) LastPing() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ping, !s.ping.IsZero()
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.state = device.StateIdle
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) emit(ev device.Event) { s.handler(ev) }

type fakeDriver struct {
	mu          sync.Mutex
	descs       []device.Descriptor
	discoverErr error
	discovers   int
	openErr     error
	// blockDiscover makes Discover wait for ctx.
	blockDiscover bool
	// newSession builds the session for each Open; defaults to a
	// connected session over a fresh facade.
	newSession func() *fakeSession
	sessions   []*fakeSession
	opened     []device.Descriptor
}

func (d *fakeDriver) Discover(ctx context.Context, host string) ([]device.Descriptor, error) {
	d.mu.Lock()
	d.discovers++
	block := d.blockDiscover
	d.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return d.descs, d.discoverErr
}

func (d *fakeDriver) Open(ctx context.Context, desc device.Descriptor, clientID string, h device.EventHandler) (device.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	var s *fakeSession
	if d.newSession != nil {
		s = d.newSession()
	} else {
		s = &fakeSession{facade: newFakeFacade(), state: device.StateConnected, ping: time.Now()}
	}
	s.handler = h
	s.clientID = clientID
	d.sessions = append(d.sessions, s)
	d.opened = append(d.opened, desc)
	return s, nil
}

func (d *fakeDriver) discoverCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discovers
}

func (d *fakeDriver) sessionList() []*fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeSession(nil), d.sessions...)
}

func oneSpa() []device.Descriptor {
	return []device.Descriptor{{Name: "Test Spa", Identifier: "AA:BB:CC:DD:EE:FF", Address: "10.0.0.5:10022"}}
}

// ----------- observers and helpers -----------

type recordingObserver struct {
	mu       sync.Mutex
	states   []string
	commands []string
	backoffs []time.Duration
}

func (o *recordingObserver) StateChanged(st models.SpaState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, st.Meta.ConnectionState)
}

func (o *recordingObserver) CommandHandled(typ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	res := "ok"
	if err != nil {
		res = err.Error()
	}
	o.commands = append(o.commands, typ+"="+res)
}

func (o *recordingObserver) BackoffScheduled(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backoffs = append(o.backoffs, d)
}

func (o *recordingObserver) Backoffs() []time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Duration(nil), o.backoffs...)
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.SpaEvent
}

func (r *fakeRecorder) Record(_ context.Context, e models.SpaEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *fakeRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// cfgBox is a mutable ConfigSource.
type cfgBox struct {
	mu sync.Mutex
	sp config.Spa
}

func newCfgBox(host string) *cfgBox {
	return &cfgBox{sp: config.Spa{
		Host:           host,
		MaxSetpointF:   104,
		PollInterval:   5 * time.Millisecond,
		ConnectTimeout: time.Second,
	}}
}

func (b *cfgBox) get() config.Spa {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sp
}

func (b *cfgBox) update(fn func(*config.Spa)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.sp)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// connectedClient returns a client whose current session is bound to f
// without running the lifecycle loop.
func connectedClient(t *testing.T, f *fakeFacade, cfg *cfgBox, obs ...Observer) (*SpaClient, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	c := NewSpaClient(&fakeDriver{}, cfg.get, SpaClientOptions{Events: rec, Observers: obs})
	sess := &fakeSession{facade: f, state: device.StateConnected}
	c.current = &liveSession{session: sess, facade: f}
	return c, rec
}

var errBoom = errors.New("boom")
