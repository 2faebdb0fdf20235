// Package mqtt bridges the spa to an MQTT broker: the State Document is
// published retained on <prefix>/state and command envelopes received on
// <prefix>/command are dispatched with their results published back.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"spa_engine/internal/config"
	"spa_engine/internal/logger"
	"spa_engine/internal/models"
	"spa_engine/internal/service"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const commandTimeout = 30 * time.Second

// Commander runs a command against the spa.
type Commander interface {
	Command(ctx context.Context, cmd models.Command) models.CommandResult
}

// CommanderFunc adapts a function to Commander.
type CommanderFunc func(ctx context.Context, cmd models.Command) models.CommandResult

func (f CommanderFunc) Command(ctx context.Context, cmd models.Command) models.CommandResult {
	return f(ctx, cmd)
}

type publishFunc func(topic string, qos byte, retained bool, payload []byte) error

// Bridge implements service.Observer. State publishes happen on a separate
// goroutine so a slow broker never stalls the connection loop.
type Bridge struct {
	service.NopObserver

	cfg    config.MQTT
	topics Topics
	spa    Commander
	log    *logger.Logger
	now    func() time.Time

	client pahomqtt.Client
	pub    publishFunc

	mu       sync.Mutex
	lastConn string
	lastPub  time.Time

	pending   chan models.SpaState
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge returns ErrDisabled when cfg has no broker.
func NewBridge(cfg config.MQTT, spa Commander, log *logger.Logger) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &Bridge{
		cfg:     cfg,
		topics:  Topics{Prefix: cfg.TopicPrefix},
		spa:     spa,
		log:     log,
		now:     time.Now,
		pending: make(chan models.SpaState, 1),
		stop:    make(chan struct{}),
	}
	b.pub = b.pahoPublish
	return b, nil
}

// Connect dials the broker and starts the publish loop. A broker that is
// not reachable within the connect timeout is not fatal: paho keeps retrying
// in the background and the connect handler subscribes once it gets through.
// Only a rejected connection is returned as an error.
func (b *Bridge) Connect() error {
	opts := buildClientOptions(b.cfg, b.topics)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		b.log.Warnw("mqtt_connection_lost", "err", err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		b.log.Infow("mqtt_reconnecting", "broker", brokerURL(b.cfg.Broker))
	})
	b.client = pahomqtt.NewClient(opts)
	b.start()

	token := b.client.Connect()
	if !token.WaitTimeout(connectWait) {
		b.log.Warnw("mqtt_connect_pending", "broker", brokerURL(b.cfg.Broker),
			"retry_interval", connectRetryInterval, "err", ErrTimeout)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

func (b *Bridge) onConnect(c pahomqtt.Client) {
	id := clientID(b.cfg)
	b.log.Infow("mqtt_connected", "broker", brokerURL(b.cfg.Broker), "client_id", id)

	if err := b.publish(b.topics.Status(), 1, true, statusPayload(id, "online", "")); err != nil {
		b.log.Warnw("mqtt_status_publish_failed", "err", err)
	}
	token := c.Subscribe(b.topics.Command(), 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
		b.handleCommand(m.Payload())
	})
	if !token.WaitTimeout(defaultPublishTimeout) {
		b.log.Errorw("mqtt_subscribe_failed", "topic", b.topics.Command(), "err", ErrTimeout)
		return
	}
	if err := token.Error(); err != nil {
		b.log.Errorw("mqtt_subscribe_failed", "topic", b.topics.Command(), "err", fmt.Errorf("%w: %w", ErrSubscribeFailed, err))
	}
}

func (b *Bridge) start() {
	b.done = make(chan struct{})
	go b.loop()
}

func (b *Bridge) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case st := <-b.pending:
			b.publishState(st)
		}
	}
}

// Close publishes a graceful offline status and disconnects. Safe to call
// more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.stop)
		if b.done != nil {
			<-b.done
		}
		if b.client == nil {
			return
		}
		if b.client.IsConnected() {
			id := clientID(b.cfg)
			if err := b.publish(b.topics.Status(), 1, true, statusPayload(id, "offline", "graceful_shutdown")); err != nil {
				b.log.Warnw("mqtt_status_publish_failed", "err", err)
			}
		}
		// also stops a connect retry still in flight
		b.client.Disconnect(defaultDisconnectQuiesce)
	})
}

// StateChanged queues st for publishing when the connection state changed
// or the publish interval has elapsed. Only the newest queued state is kept.
func (b *Bridge) StateChanged(st models.SpaState) {
	if !b.shouldPublish(st) {
		return
	}
	for {
		select {
		case b.pending <- st:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

func (b *Bridge) shouldPublish(st models.SpaState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	conn := st.Meta.ConnectionState
	if !b.lastPub.IsZero() && conn == b.lastConn &&
		b.cfg.PublishInterval > 0 && now.Sub(b.lastPub) < b.cfg.PublishInterval {
		return false
	}
	b.lastConn = conn
	b.lastPub = now
	return true
}

func (b *Bridge) publishState(st models.SpaState) {
	body, err := json.Marshal(st)
	if err != nil {
		b.log.Errorw("mqtt_state_encode_failed", "err", err)
		return
	}
	if err := b.publish(b.topics.State(), 0, true, body); err != nil {
		b.log.Warnw("mqtt_state_publish_failed", "err", err)
	}
}

func (b *Bridge) handleCommand(payload []byte) {
	var cmd models.Command
	var res models.CommandResult
	if err := json.Unmarshal(payload, &cmd); err != nil {
		res = models.CommandResult{OK: false, Error: "Invalid command envelope"}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		res = b.spa.Command(ctx, cmd)
		cancel()
	}
	b.log.Infow("mqtt_command", "type", cmd.Type, "ok", res.OK, "error", res.Error)

	body, err := json.Marshal(res)
	if err != nil {
		b.log.Errorw("mqtt_result_encode_failed", "err", err)
		return
	}
	if err := b.publish(b.topics.CommandResult(), 1, false, body); err != nil {
		b.log.Warnw("mqtt_result_publish_failed", "err", err)
	}
}

func (b *Bridge) publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return b.pub(topic, qos, retained, payload)
}

func (b *Bridge) pahoPublish(topic string, qos byte, retained bool, payload []byte) error {
	if b.client == nil || !b.client.IsConnected() {
		return ErrNotConnected
	}
	token := b.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
