package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"spa_engine/internal/config"
	"spa_engine/internal/device"
	"spa_engine/internal/logger"
	"spa_engine/internal/models"

	"github.com/google/uuid"
)

const eventRecordTimeout = 2 * time.Second

// ConfigSource returns the current spa settings. It is called on every
// loop iteration so configuration changes apply without a restart.
type ConfigSource func() config.Spa

// EventRecorder persists connection and command events.
type EventRecorder interface {
	Record(ctx context.Context, e models.SpaEvent) error
}

// SpaClientOptions carries optional collaborators. Zero values are fine.
type SpaClientOptions struct {
	Log            *logger.Logger
	Events         EventRecorder
	Observers      []Observer
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// SpaClient owns the single connection to the spa. One background loop
// discovers, connects, polls, idles and backs off; request goroutines read
// snapshots and issue commands.
type SpaClient struct {
	driver    device.Driver
	cfg       ConfigSource
	log       *logger.Logger
	events    EventRecorder
	observers []Observer
	activity  *ActivityTracker
	clientID  func() string
	now       func() time.Time

	initialBackoff time.Duration
	maxBackoff     time.Duration

	stateMu sync.Mutex
	state   models.SpaState

	sessMu  sync.Mutex
	current *liveSession

	// cmdMu serializes commands, the projection after a poll tick and
	// session teardown.
	cmdMu   sync.Mutex
	lastCmd time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// liveSession is one connected (or connecting) device session plus the
// errors its events reported.
type liveSession struct {
	session device.Session
	facade  device.Facade

	mu          sync.Mutex
	lastError   *string
	lastErrorAt *time.Time
	tornDown    bool
}

func (ls *liveSession) recordError(msg string, at time.Time) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lastError = &msg
	ls.lastErrorAt = &at
}

func (ls *liveSession) errorInfo() (*string, *time.Time) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.lastError, ls.lastErrorAt
}

// alive reports whether polling may continue on this session.
func (ls *liveSession) alive() (bool, device.SessionState) {
	ls.mu.Lock()
	torn := ls.tornDown
	ls.mu.Unlock()
	st := ls.session.State()
	return !torn && ls.facade != nil && st == device.StateConnected, st
}

// NewSpaClient builds a stopped client; call Start to run the loop.
func NewSpaClient(driver device.Driver, cfg ConfigSource, opts SpaClientOptions) *SpaClient {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	c := &SpaClient{
		driver:         driver,
		cfg:            cfg,
		log:            log,
		events:         opts.Events,
		observers:      opts.Observers,
		activity:       NewActivityTracker(),
		clientID:       func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		now:            time.Now,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = defaultInitialBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = defaultMaxBackoff
	}
	c.state = models.InitialSpaState(c.now().UTC(), cfg().MaxSetpointF)
	return c
}

// Start launches the lifecycle loop. Calling Start on a running client is
// a no-op; a loop that ended because its parent ctx was cancelled is
// replaced.
func (c *SpaClient) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		select {
		case <-c.done:
			c.cancel()
		default:
			return
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
}

// Stop cancels the loop and blocks until it has closed its session and
// returned. Calling Stop on a stopped client is a no-op.
func (c *SpaClient) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
}

// GetState returns an isolated copy of the current document and counts as
// client activity.
func (c *SpaClient) GetState() models.SpaState {
	c.activity.Touch()
	return c.Snapshot()
}

// Snapshot returns an isolated copy without recording activity.
func (c *SpaClient) Snapshot() models.SpaState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state.Clone()
}

// IsConnected reports whether meta.connectionState is CONNECTED.
func (c *SpaClient) IsConnected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state.Meta.ConnectionState == models.ConnConnected
}

// NoteStateRequest records client activity without reading state.
func (c *SpaClient) NoteStateRequest() {
	c.activity.Touch()
}

// run is the lifecycle loop: IDLE_WAIT -> DISCOVERING -> CONNECTING ->
// POLLING, with ERROR_BACKOFF on any failure.
func (c *SpaClient) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	defer c.setConnectionState(models.ConnDisconnected)

	bo := NewBackoff(c.initialBackoff, c.maxBackoff)
	for ctx.Err() == nil {
		cfg := c.cfg()
		if isIdle(c.now(), c.activity.Last(), cfg.IdleTimeout) {
			c.waitIdle(ctx, cfg)
			continue
		}

		err := c.runSession(ctx, cfg, bo)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// went idle
			continue
		}

		ce := classify(err)
		c.setError(ce)
		wait := bo.Next()
		c.log.Warnw("spa_backoff", "class", ce.Class, "err", ce.Error(), "wait", wait)
		for _, o := range c.observers {
			o.BackoffScheduled(wait)
		}
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// waitIdle parks the loop until a client shows up or the idle timeout
// elapses, whichever comes first.
func (c *SpaClient) waitIdle(ctx context.Context, cfg config.Spa) {
	if c.setConnectionState(models.ConnDisconnected) {
		c.log.Infow("spa_idle", "idle_timeout", cfg.IdleTimeout)
	}
	t := time.NewTimer(cfg.IdleTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-c.activity.Wake():
	case <-t.C:
	}
}

// runSession performs one discover/connect/poll cycle. It returns nil when
// the session ended because of stop or idleness, and an error otherwise.
// A panic anywhere in the cycle is converted into a session error.
func (c *SpaClient) runSession(ctx context.Context, cfg config.Spa, bo *Backoff) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("spa_session_panic", "panic", r)
			err = panicError(r)
		}
	}()

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return errHostNotSet
	}

	c.setConnectionState(models.ConnConnecting)
	c.log.Infow("spa_discovery_start", "host", host)
	c.record(models.EventConnecting, "Starting discovery against "+host, map[string]any{"host": host})

	dctx, cancel := withTimeout(ctx, cfg.ConnectTimeout)
	descs, err := c.driver.Discover(dctx, host)
	cancel()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return &ConnError{Class: ClassDiscovery, Msg: "Discovery failed", Err: err}
	}
	if len(descs) == 0 {
		c.log.Warnw("spa_discovery_empty", "host", host)
		return errSpaNotFound
	}
	d := pickDescriptor(descs, cfg.MAC)
	c.log.Infow("spa_discovered", "name", d.Name, "address", d.Address, "identifier", d.Identifier)

	ls := &liveSession{}
	sess, err := c.driver.Open(ctx, d, c.clientID(), func(ev device.Event) { c.handleEvent(ls, ev) })
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &ConnError{Class: ClassConnect, Msg: "Failed to open session", Err: err}
	}
	ls.session = sess
	defer c.teardown(ls)

	fctx, cancel := withTimeout(ctx, cfg.ConnectTimeout)
	facade, err := sess.WaitForFacade(fctx)
	cancel()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil || facade == nil {
		return &ConnError{Class: ClassConnect, Msg: "Failed to create facade", Err: err}
	}
	ls.facade = facade

	c.log.Infow("spa_connected_waiting_update")
	uctx, cancel := withTimeout(ctx, cfg.ConnectTimeout)
	err = facade.WaitForOneUpdate(uctx)
	cancel()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return &ConnError{Class: ClassConnect, Msg: "No state update from spa", Err: err}
	}

	c.sessMu.Lock()
	c.current = ls
	c.sessMu.Unlock()
	bo.Reset()
	c.log.Infow("spa_polling", "name", d.Name)
	c.record(models.EventConnected, "Connected to "+d.Name, map[string]any{"address": d.Address})

	return c.poll(ctx, ls)
}

// poll projects state every poll interval until stop, idleness or loss of
// the session.
func (c *SpaClient) poll(ctx context.Context, ls *liveSession) error {
	for {
		c.projectExclusive(ls)

		cfg := c.cfg()
		if !sleepCtx(ctx, cfg.PollInterval) {
			return nil
		}
		if isIdle(c.now(), c.activity.Last(), cfg.IdleTimeout) {
			c.log.Infow("spa_idle_disconnect", "idle_timeout", cfg.IdleTimeout)
			c.record(models.EventDisconnected, "No client activity; disconnecting", nil)
			return nil
		}
		if ok, st := ls.alive(); !ok {
			return &ConnError{Class: ClassSession, Msg: fmt.Sprintf("Connection lost (%s)", st)}
		}
	}
}

func (c *SpaClient) projectExclusive(ls *liveSession) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.project(ls)
}

// teardown detaches the session from command use and closes it.
func (c *SpaClient) teardown(ls *liveSession) {
	c.cmdMu.Lock()
	c.sessMu.Lock()
	if c.current == ls {
		c.current = nil
	}
	c.sessMu.Unlock()
	c.cmdMu.Unlock()

	if err := ls.session.Close(); err != nil {
		c.log.Warnw("spa_session_close_failed", "err", err)
	}
}

func (c *SpaClient) currentSession() *liveSession {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.current
}

// handleEvent is the single dispatch point for session events.
func (c *SpaClient) handleEvent(ls *liveSession, ev device.Event) {
	switch e := ev.(type) {
	case device.SpaNotFound,
		device.ConfigVersionMissing,
		device.LogVersionMissing,
		device.SpaPackMissing,
		device.ConnectionRetryExceeded,
		device.ProtocolRetryExceeded,
		device.RFError,
		device.TooManyRFErrors:
		c.log.Warnw("spa_event", "event", e.Name())
		ls.recordError(e.Name(), c.now().UTC())
	case device.FacadeTeardown:
		c.log.Infow("spa_event", "event", e.Name())
		ls.mu.Lock()
		ls.tornDown = true
		ls.mu.Unlock()
	case device.StateChanged:
		c.log.Debugw("spa_event", "event", e.Name(), "from", e.From.String(), "to", e.To.String())
	default:
		c.log.Warnw("spa_event_unhandled", "event", fmt.Sprintf("%T", ev))
	}
}

// project re-reads the facade and publishes a new document. Callers hold
// cmdMu.
func (c *SpaClient) project(ls *liveSession) {
	now := c.now().UTC()
	prev := c.Snapshot()

	lastErr, lastErrAt := ls.errorInfo()
	if lastErr == nil {
		lastErr, lastErrAt = prev.Meta.LastError, prev.Meta.LastErrorAt
	}
	var contact *time.Time
	if t, ok := ls.session.LastPing(); ok {
		t = t.UTC()
		contact = &t
	}

	st := projectState(ls.facade, projectMeta{
		now:          now,
		connState:    ls.session.State().ConnectionState(),
		lastError:    lastErr,
		lastErrorAt:  lastErrAt,
		lastContact:  contact,
		maxSetpointF: c.cfg().MaxSetpointF,
	})
	c.publish(st)
}

// publish replaces the document and notifies observers.
func (c *SpaClient) publish(st models.SpaState) {
	c.stateMu.Lock()
	c.state = st
	c.stateMu.Unlock()
	for _, o := range c.observers {
		o.StateChanged(st.Clone())
	}
}

// setConnectionState publishes a copy of the document with a new
// connection state. It reports whether the state changed.
func (c *SpaClient) setConnectionState(state string) bool {
	c.stateMu.Lock()
	if c.state.Meta.ConnectionState == state {
		c.stateMu.Unlock()
		return false
	}
	st := c.state.Clone()
	st.Meta.ConnectionState = state
	st.Meta.LastUpdated = c.now().UTC()
	c.state = st
	c.stateMu.Unlock()

	for _, o := range c.observers {
		o.StateChanged(st.Clone())
	}
	return true
}

// setError publishes ERROR with the failure message and time.
func (c *SpaClient) setError(ce *ConnError) {
	now := c.now().UTC()
	msg := ce.Msg
	if ce.Class == ClassSession && ce.Err != nil {
		msg = ce.Error()
	}

	c.stateMu.Lock()
	st := c.state.Clone()
	st.Meta.ConnectionState = models.ConnError
	st.Meta.LastError = &msg
	st.Meta.LastErrorAt = &now
	st.Meta.LastUpdated = now
	c.state = st
	c.stateMu.Unlock()

	for _, o := range c.observers {
		o.StateChanged(st.Clone())
	}
	c.record(models.EventError, msg, map[string]any{"class": string(ce.Class)})
}

func (c *SpaClient) record(typ, desc string, meta map[string]any) {
	if c.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventRecordTimeout)
	defer cancel()
	ev := models.SpaEvent{Type: typ, Description: desc, OccurredAt: c.now().UTC()}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := c.events.Record(ctx, ev); err != nil {
		c.log.Warnw("spa_event_record_failed", "type", typ, "err", err)
	}
}

// pickDescriptor prefers the spa whose identifier matches mac.
func pickDescriptor(descs []device.Descriptor, mac string) device.Descriptor {
	want := normalizeMAC(mac)
	if want != "" {
		for _, d := range descs {
			if normalizeMAC(d.Identifier) == want {
				return d
			}
		}
	}
	return descs[0]
}

func normalizeMAC(s string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(s)))
}

// sleepCtx waits d or until ctx is done. It reports false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
