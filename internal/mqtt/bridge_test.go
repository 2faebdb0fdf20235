package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"spa_engine/internal/config"
	"spa_engine/internal/models"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type recorder struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (r *recorder) publish(topic string, qos byte, retained bool, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, published{topic, qos, retained, payload})
	return r.err
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.msgs...)
}

type stubCommander struct {
	got models.Command
	res models.CommandResult
}

func (s *stubCommander) Command(_ context.Context, cmd models.Command) models.CommandResult {
	s.got = cmd
	return s.res
}

func newTestBridge(t *testing.T, cfg config.MQTT, spa Commander) (*Bridge, *recorder) {
	t.Helper()
	if cfg.Broker == "" {
		cfg.Broker = "localhost:1883"
	}
	b, err := NewBridge(cfg, spa, nil)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	rec := &recorder{}
	b.pub = rec.publish
	return b, rec
}

func stateWith(conn string) models.SpaState {
	st := models.SpaState{}
	st.Meta.ConnectionState = conn
	return st
}

func TestTopics(t *testing.T) {
	cases := []struct {
		prefix string
		state  string
		result string
	}{
		{"", "spa/state", "spa/command/result"},
		{"spa", "spa/state", "spa/command/result"},
		{"/home/hottub/", "home/hottub/state", "home/hottub/command/result"},
		{"  pool ", "pool/state", "pool/command/result"},
	}
	for _, tc := range cases {
		t.Run(tc.prefix, func(t *testing.T) {
			tp := Topics{Prefix: tc.prefix}
			if got := tp.State(); got != tc.state {
				t.Fatalf("State() = %q, want %q", got, tc.state)
			}
			if got := tp.CommandResult(); got != tc.result {
				t.Fatalf("CommandResult() = %q, want %q", got, tc.result)
			}
		})
	}
}

func TestNewBridgeDisabled(t *testing.T) {
	if _, err := NewBridge(config.MQTT{}, &stubCommander{}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL("broker:1883"); got != "tcp://broker:1883" {
		t.Fatalf("got %q", got)
	}
	if got := brokerURL("ssl://broker:8883"); got != "ssl://broker:8883" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTT{Broker: "broker:1883", Username: "u", Password: "p", TopicPrefix: "hottub"}
	opts := buildClientOptions(cfg, Topics{Prefix: cfg.TopicPrefix})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker:1883" {
		t.Fatalf("unexpected servers: %v", opts.Servers)
	}
	if opts.ClientID != defaultClientID {
		t.Fatalf("client id = %q", opts.ClientID)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("credentials not set")
	}
	if !opts.WillEnabled || opts.WillTopic != "hottub/status" || !opts.WillRetained {
		t.Fatalf("unexpected will: enabled=%v topic=%q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	var will statusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if will.Status != "offline" {
		t.Fatalf("will status = %q", will.Status)
	}
	if !opts.AutoReconnect {
		t.Fatalf("expected auto reconnect")
	}
	if !opts.ConnectRetry || opts.ConnectRetryInterval != connectRetryInterval {
		t.Fatalf("connect retry = %v every %v", opts.ConnectRetry, opts.ConnectRetryInterval)
	}
}

func TestConnect_BrokerDownKeepsRetrying(t *testing.T) {
	wait, retry := connectWait, connectRetryInterval
	connectWait, connectRetryInterval = 100*time.Millisecond, 50*time.Millisecond
	t.Cleanup(func() { connectWait, connectRetryInterval = wait, retry })

	b, err := NewBridge(config.MQTT{Broker: "127.0.0.1:1"}, &stubCommander{}, nil)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	if err := b.Connect(); err != nil {
		t.Fatalf("an unreachable broker should not fail Connect: %v", err)
	}
	if b.done == nil {
		t.Fatalf("publish loop not started")
	}
	if b.client.IsConnected() {
		t.Fatalf("client should still be connecting")
	}
	if err := b.publish(b.topics.State(), 0, true, []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not stop the pending connect")
	}
}

func TestShouldPublish(t *testing.T) {
	b, _ := newTestBridge(t, config.MQTT{PublishInterval: 10 * time.Second}, &stubCommander{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	b.now = func() time.Time { return now }

	steps := []struct {
		at   time.Duration
		conn string
		want bool
	}{
		{0, models.ConnConnecting, true},
		{time.Second, models.ConnConnecting, false},
		{2 * time.Second, models.ConnConnected, true},
		{5 * time.Second, models.ConnConnected, false},
		{12 * time.Second, models.ConnConnected, true},
		{13 * time.Second, models.ConnError, true},
	}
	for i, s := range steps {
		now = base.Add(s.at)
		if got := b.shouldPublish(stateWith(s.conn)); got != s.want {
			t.Fatalf("step %d (%s at %v): got %v, want %v", i, s.conn, s.at, got, s.want)
		}
	}
}

func TestShouldPublishNoInterval(t *testing.T) {
	b, _ := newTestBridge(t, config.MQTT{}, &stubCommander{})
	for i := 0; i < 3; i++ {
		if !b.shouldPublish(stateWith(models.ConnConnected)) {
			t.Fatalf("publish %d suppressed without an interval", i)
		}
	}
}

func TestStateChangedPublishesRetained(t *testing.T) {
	b, rec := newTestBridge(t, config.MQTT{TopicPrefix: "hottub"}, &stubCommander{})
	b.start()
	t.Cleanup(b.Close)

	b.StateChanged(stateWith(models.ConnConnected))

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("state never published")
		}
		time.Sleep(5 * time.Millisecond)
	}
	msg := rec.all()[0]
	if msg.topic != "hottub/state" || !msg.retained {
		t.Fatalf("unexpected publish: topic=%q retained=%v", msg.topic, msg.retained)
	}
	var got models.SpaState
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Meta.ConnectionState != models.ConnConnected {
		t.Fatalf("connection state = %q", got.Meta.ConnectionState)
	}
}

func TestStateChangedKeepsNewest(t *testing.T) {
	b, _ := newTestBridge(t, config.MQTT{}, &stubCommander{})

	b.StateChanged(stateWith(models.ConnConnecting))
	b.StateChanged(stateWith(models.ConnConnected))

	select {
	case st := <-b.pending:
		if st.Meta.ConnectionState != models.ConnConnected {
			t.Fatalf("queued %q, want newest", st.Meta.ConnectionState)
		}
	default:
		t.Fatalf("nothing queued")
	}
}

func TestHandleCommand(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		res     models.CommandResult
		want    models.CommandResult
		wantCmd string
	}{
		{
			name:    "dispatched",
			payload: `{"type":"temp.set","payload":{"setpoint_f":100}}`,
			res:     models.CommandResult{OK: true},
			want:    models.CommandResult{OK: true},
			wantCmd: models.CmdTempSet,
		},
		{
			name:    "failure passed through",
			payload: `{"type":"light.toggle"}`,
			res:     models.CommandResult{OK: false, Error: "Spa is not connected"},
			want:    models.CommandResult{OK: false, Error: "Spa is not connected"},
			wantCmd: models.CmdLightToggle,
		},
		{
			name:    "bad envelope",
			payload: `{not json`,
			want:    models.CommandResult{OK: false, Error: "Invalid command envelope"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spa := &stubCommander{res: tc.res}
			b, rec := newTestBridge(t, config.MQTT{}, spa)

			b.handleCommand([]byte(tc.payload))

			if spa.got.Type != tc.wantCmd {
				t.Fatalf("dispatched %q, want %q", spa.got.Type, tc.wantCmd)
			}
			msgs := rec.all()
			if len(msgs) != 1 {
				t.Fatalf("expected one publish, got %d", len(msgs))
			}
			if msgs[0].topic != "spa/command/result" || msgs[0].retained || msgs[0].qos != 1 {
				t.Fatalf("unexpected publish: %+v", msgs[0])
			}
			var got models.CommandResult
			if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
				t.Fatalf("payload: %v", err)
			}
			if got != tc.want {
				t.Fatalf("result = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	b, rec := newTestBridge(t, config.MQTT{}, &stubCommander{})

	if err := b.publish("", 0, false, nil); !errors.Is(err, ErrInvalidTopic) {
		t.Fatalf("expected ErrInvalidTopic, got %v", err)
	}
	if err := b.publish("spa/state", 3, false, nil); !errors.Is(err, ErrInvalidQoS) {
		t.Fatalf("expected ErrInvalidQoS, got %v", err)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("invalid publishes reached the client")
	}
}

func TestPublishWithoutClient(t *testing.T) {
	b, err := NewBridge(config.MQTT{Broker: "localhost:1883"}, &stubCommander{}, nil)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	if err := b.publish("spa/state", 0, true, []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	b.Close()
	b.Close()
}
