// Package metrics exports the spa connection and state as Prometheus
// metrics. The Collector is fed by SpaClient observer callbacks.
package metrics

import (
	"net/http"
	"time"

	"spa_engine/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spa"

var connectionStates = []string{
	models.ConnDisconnected,
	models.ConnConnecting,
	models.ConnConnected,
	models.ConnError,
}

// Collector implements service.Observer.
type Collector struct {
	registry *prometheus.Registry

	connection   *prometheus.GaugeVec
	waterTemp    prometheus.Gauge
	setpoint     prometheus.Gauge
	heater       prometheus.Gauge
	lights       prometheus.Gauge
	pump         *prometheus.GaugeVec
	faults       prometheus.Gauge
	lastUpdated  prometheus.Gauge
	commands     *prometheus.CounterVec
	backoff      prometheus.Gauge
	backoffTotal prometheus.Counter
}

// New builds a Collector on its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 for the others",
		}, []string{"state"}),
		waterTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "water_temperature_fahrenheit",
			Help:      "Current water temperature in Fahrenheit",
		}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "setpoint_fahrenheit",
			Help:      "Target water temperature in Fahrenheit",
		}),
		heater: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heater_on",
			Help:      "Heater status (1 = on, 0 = off)",
		}),
		lights: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lights_on",
			Help:      "Light status (1 = any light on, 0 = off)",
		}),
		pump: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_on",
			Help:      "Pump status (1 = on, 0 = off)",
		}, []string{"id", "label"}),
		faults: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_errors",
			Help:      "Number of errors the spa currently reports",
		}),
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last published state",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by type and result",
		}, []string{"type", "result"}),
		backoff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconnect_backoff_seconds",
			Help:      "Wait before the next reconnect attempt",
		}),
		backoffTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_failures_total",
			Help:      "Connection attempts that ended in backoff",
		}),
	}
	c.registry.MustRegister(
		c.connection, c.waterTemp, c.setpoint, c.heater, c.lights, c.pump,
		c.faults, c.lastUpdated, c.commands, c.backoff, c.backoffTotal,
	)
	c.setConnection(models.ConnDisconnected)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) StateChanged(st models.SpaState) {
	c.setConnection(st.Meta.ConnectionState)
	if !st.Meta.LastUpdated.IsZero() {
		c.lastUpdated.Set(float64(st.Meta.LastUpdated.Unix()))
	}
	if st.Meta.ConnectionState == models.ConnConnected {
		c.backoff.Set(0)
	}
	// Device readings keep their last value unless connected.
	if st.Meta.ConnectionState != models.ConnConnected {
		return
	}
	if st.Temps.CurrentF != nil {
		c.waterTemp.Set(*st.Temps.CurrentF)
	}
	if st.Temps.SetpointF != nil {
		c.setpoint.Set(*st.Temps.SetpointF)
	}
	c.heater.Set(boolToFloat(st.Heater.On))
	c.lights.Set(boolToFloat(st.Lights.On))
	c.faults.Set(float64(len(st.Errors)))

	c.pump.Reset()
	for _, p := range st.Pumps {
		c.pump.WithLabelValues(p.ID, p.Label).Set(boolToFloat(p.State == "on"))
	}
}

func (c *Collector) CommandHandled(cmdType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.commands.WithLabelValues(cmdType, result).Inc()
}

func (c *Collector) BackoffScheduled(d time.Duration) {
	c.backoff.Set(d.Seconds())
	c.backoffTotal.Inc()
}

func (c *Collector) setConnection(state string) {
	for _, s := range connectionStates {
		c.connection.WithLabelValues(s).Set(boolToFloat(s == state))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
