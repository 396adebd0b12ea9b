// Package telemetry exposes the prometheus collectors used as the side
// channel for best-effort failures that never reach the caller.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "pelusa"

// Heartbeat results.
const (
	HeartbeatSent    = "sent"
	HeartbeatSkipped = "skipped"
	HeartbeatFailed  = "failed"
)

// Notification surfaces.
const (
	SurfaceInApp  = "in_app"
	SurfaceNative = "native"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	heartbeats     *prometheus.CounterVec
	events         *prometheus.CounterVec
	callbackPanics *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	connState      prometheus.Gauge
	reconnects     prometheus.Counter
	notifications  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat ticks by result.",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Inbound realtime events by name.",
		}, []string{"event"}),
		callbackPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "callback_panics_total",
			Help:      "Subscriber callbacks that panicked during dispatch.",
		}, []string{"registry"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "outbound_dropped_total",
			Help:      "Outbound events dropped because there was no connection or scope.",
		}, []string{"event"}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connection_state",
			Help:      "Current connection state (0 idle, 1 connecting, 2 connected, 3 closed).",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect cycles started after the transport dropped.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications surfaced by surface.",
		}, []string{"surface"}),
	}
	if reg != nil {
		reg.MustRegister(m.heartbeats, m.events, m.callbackPanics, m.dropped,
			m.connState, m.reconnects, m.notifications)
	}
	return m
}

func (m *Metrics) Heartbeat(result string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(result).Inc()
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

func (m *Metrics) CallbackPanic(registry string) {
	if m == nil {
		return
	}
	m.callbackPanics.WithLabelValues(registry).Inc()
}

func (m *Metrics) Dropped(event string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(event).Inc()
}

func (m *Metrics) ConnectionState(state int) {
	if m == nil {
		return
	}
	m.connState.Set(float64(state))
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) Notification(surface string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(surface).Inc()
}

// HeartbeatCount returns the counter for result; used by tests and the debug panel.
func (m *Metrics) HeartbeatCount(result string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.heartbeats.WithLabelValues(result))
}

// CallbackPanics returns the panic counter for registry.
func (m *Metrics) CallbackPanics(registry string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.callbackPanics.WithLabelValues(registry))
}

func counterValue(c prometheus.Counter) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}
