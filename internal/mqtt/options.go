package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"spa_engine/internal/config"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultClientID          = "spa-engine"
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultMaxReconnect      = 2 * time.Minute
	defaultConnectRetry      = 10 * time.Second
	defaultDisconnectQuiesce = 500 // milliseconds
	maxQoS                   = 2
)

var (
	connectWait          = defaultConnectTimeout
	connectRetryInterval = defaultConnectRetry
)

// brokerURL accepts either a full URL or a bare host:port.
func brokerURL(broker string) string {
	broker = strings.TrimSpace(broker)
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

func clientID(cfg config.MQTT) string {
	if id := strings.TrimSpace(cfg.ClientID); id != "" {
		return id
	}
	return defaultClientID
}

func buildClientOptions(cfg config.MQTT, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))

	id := clientID(cfg)
	opts.SetClientID(id)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(defaultMaxReconnect)
	opts.SetConnectTimeout(defaultConnectTimeout)
	// keep dialing when the broker is down at startup
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetKeepAlive(defaultKeepAlive)
	// command handlers run in their own goroutines
	opts.SetOrderMatters(false)

	opts.SetBinaryWill(topics.Status(), statusPayload(id, "offline", "unexpected_disconnect"), 1, true)
	return opts
}

type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(id, status, reason string) []byte {
	b, _ := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  id,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}
