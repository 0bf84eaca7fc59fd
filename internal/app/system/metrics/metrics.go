// internal/app/system/metrics/metrics.go
// Package metrics holds the Prometheus collectors for membership transitions
// and the notification outbox. A nil *Metrics is valid and records nothing,
// so stores and services can be constructed without it in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campushub"

type Metrics struct {
	reg *prometheus.Registry

	intentsEnqueued   *prometheus.CounterVec
	intentsDispatched *prometheus.CounterVec
	intentsRetried    *prometheus.CounterVec
	intentsFailed     *prometheus.CounterVec
	delivered         *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	wsConnections     prometheus.Gauge
}

// New registers the application collectors, plus the Go runtime and process
// collectors, on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		intentsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "intents_enqueued_total",
			Help: "Notification intents written to the outbox.",
		}, []string{"kind"}),
		intentsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "intents_dispatched_total",
			Help: "Notification intents fully delivered.",
		}, []string{"kind"}),
		intentsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "intents_retried_total",
			Help: "Dispatch attempts that failed and were rescheduled.",
		}, []string{"kind"}),
		intentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "outbox", Name: "intents_failed_total",
			Help: "Notification intents abandoned after max attempts.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifications", Name: "delivered_total",
			Help: "Notifications created for a recipient.",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "membership", Name: "transitions_total",
			Help: "Forum membership state transitions.",
		}, []string{"transition"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "realtime", Name: "connections",
			Help: "Open websocket connections on this instance.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.intentsEnqueued,
		m.intentsDispatched,
		m.intentsRetried,
		m.intentsFailed,
		m.delivered,
		m.transitions,
		m.wsConnections,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) IntentEnqueued(kind string) {
	if m != nil {
		m.intentsEnqueued.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IntentDispatched(kind string) {
	if m != nil {
		m.intentsDispatched.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IntentRetried(kind string) {
	if m != nil {
		m.intentsRetried.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IntentFailed(kind string) {
	if m != nil {
		m.intentsFailed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Delivered(kind string) {
	if m != nil {
		m.delivered.WithLabelValues(kind).Inc()
	}
}

// Transition counts a membership change, e.g. "requested" or "accepted".
func (m *Metrics) Transition(name string) {
	if m != nil {
		m.transitions.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}
