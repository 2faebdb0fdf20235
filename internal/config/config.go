// Package config loads configuration from configs/config.yml and the
// environment. Environment variables use the names the spa engine has
// always used (INTOUCH2_HOST, MAX_SETPOINT_F, ...).
package config

import (
	"errors"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envBindings maps config keys to their environment variable.
var envBindings = map[string]string{
	"port":                   "PORT",
	"db.path":                "DB_PATH",
	"db.max_events":          "EVENTS_MAX_ROWS",
	"cors.origins":           "CORS_ORIGINS",
	"log.level":              "LOG_LEVEL",
	"log.dir":                "LOG_DIR",
	"log.events_file":        "EVENTS_LOG_FILE",
	"log.max_bytes":          "LOG_MAX_BYTES",
	"spa.driver":             "SPA_DRIVER",
	"spa.host":               "INTOUCH2_HOST",
	"spa.mac":                "INTOUCH2_MAC",
	"spa.max_setpoint_f":     "MAX_SETPOINT_F",
	"spa.command_rate_ms":    "COMMAND_RATE_LIMIT_MS",
	"spa.poll_interval_ms":   "STATE_POLL_INTERVAL_MS",
	"spa.state_log_interval": "STATE_LOG_INTERVAL_S",
	"spa.idle_timeout_s":     "IDLE_TIMEOUT_S",
	"spa.connect_timeout_s":  "CONNECT_TIMEOUT_S",
	"mqtt.broker":            "MQTT_BROKER",
	"mqtt.client_id":         "MQTT_CLIENT_ID",
	"mqtt.username":          "MQTT_USERNAME",
	"mqtt.password":          "MQTT_PASSWORD",
	"mqtt.topic_prefix":      "MQTT_TOPIC_PREFIX",
	"mqtt.publish_interval":  "MQTT_PUBLISH_INTERVAL_S",
}

var defaults = map[string]any{
	"port":                   "8000",
	"db.path":                "spa.db",
	"db.max_events":          5000,
	"cors.origins":           "*",
	"log.level":              "info",
	"log.dir":                "./logs",
	"log.events_file":        "events.log",
	"log.max_bytes":          100 * 1024,
	"spa.driver":             "sim",
	"spa.host":               "",
	"spa.mac":                "",
	"spa.max_setpoint_f":     104,
	"spa.command_rate_ms":    0,
	"spa.poll_interval_ms":   1500,
	"spa.state_log_interval": 60,
	"spa.idle_timeout_s":     300,
	"spa.connect_timeout_s":  30,
	"mqtt.broker":            "",
	"mqtt.client_id":         "spa-engine",
	"mqtt.topic_prefix":      "spa",
	"mqtt.publish_interval":  10,
}

// Spa holds the settings the connection manager re-reads on every loop
// iteration.
type Spa struct {
	Host             string
	MAC              string
	MaxSetpointF     float64
	CommandRateLimit time.Duration
	PollInterval     time.Duration
	StateLogInterval time.Duration
	IdleTimeout      time.Duration
	ConnectTimeout   time.Duration
}

// MQTT holds the optional broker bridge settings.
type MQTT struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	PublishInterval time.Duration
}

// Log holds console and event-log settings.
type Log struct {
	Level      string
	Dir        string
	EventsFile string
	MaxBytes   int64
}

// Provider serves a cached Spa snapshot that is refreshed whenever the
// config file changes.
type Provider struct {
	v  *viper.Viper
	mu sync.RWMutex
	sp Spa
}

// Load reads configs/config.yml when present and binds environment
// variables. A missing config file is not an error.
func Load(paths ...string) (*Provider, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for k, env := range envBindings {
		if err := v.BindEnv(k, env); err != nil {
			return nil, err
		}
	}
	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	p := &Provider{v: v}
	p.sp = readSpa(v)
	return p, nil
}

// Watch refreshes the Spa snapshot on config file changes. onChange may be nil.
func (p *Provider) Watch(onChange func(Spa)) {
	if p.v.ConfigFileUsed() == "" {
		return
	}
	p.v.OnConfigChange(func(fsnotify.Event) {
		sp := readSpa(p.v)
		p.mu.Lock()
		p.sp = sp
		p.mu.Unlock()
		if onChange != nil {
			onChange(sp)
		}
	})
	p.v.WatchConfig()
}

// Spa returns the current spa settings.
func (p *Provider) Spa() Spa {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sp
}

func (p *Provider) Port() string        { return p.v.GetString("port") }
func (p *Provider) DBPath() string      { return p.v.GetString("db.path") }
func (p *Provider) MaxEvents() int      { return p.v.GetInt("db.max_events") }
func (p *Provider) Driver() string      { return p.v.GetString("spa.driver") }
func (p *Provider) CORSOrigins() string { return p.v.GetString("cors.origins") }

func (p *Provider) Log() Log {
	return Log{
		Level:      p.v.GetString("log.level"),
		Dir:        p.v.GetString("log.dir"),
		EventsFile: p.v.GetString("log.events_file"),
		MaxBytes:   p.v.GetInt64("log.max_bytes"),
	}
}

func (p *Provider) MQTT() MQTT {
	return MQTT{
		Broker:          p.v.GetString("mqtt.broker"),
		ClientID:        p.v.GetString("mqtt.client_id"),
		Username:        p.v.GetString("mqtt.username"),
		Password:        p.v.GetString("mqtt.password"),
		TopicPrefix:     p.v.GetString("mqtt.topic_prefix"),
		PublishInterval: time.Duration(p.v.GetInt("mqtt.publish_interval")) * time.Second,
	}
}

func readSpa(v *viper.Viper) Spa {
	return Spa{
		Host:             v.GetString("spa.host"),
		MAC:              v.GetString("spa.mac"),
		MaxSetpointF:     v.GetFloat64("spa.max_setpoint_f"),
		CommandRateLimit: time.Duration(v.GetInt("spa.command_rate_ms")) * time.Millisecond,
		PollInterval:     time.Duration(v.GetInt("spa.poll_interval_ms")) * time.Millisecond,
		StateLogInterval: time.Duration(v.GetInt("spa.state_log_interval")) * time.Second,
		IdleTimeout:      time.Duration(v.GetInt("spa.idle_timeout_s")) * time.Second,
		ConnectTimeout:   time.Duration(v.GetInt("spa.connect_timeout_s")) * time.Second,
	}
}
