// Package metrics holds the Prometheus instrumentation of the relay core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Metrics contains every collector exported by the relay.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	StoreAppends        *prometheus.CounterVec
	StoreAppendDuration prometheus.Histogram
	RelayEvents         *prometheus.CounterVec
	PresenceConnections prometheus.Gauge
	PresenceDeliveries  *prometheus.CounterVec
}

// New creates the collectors and registers them on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		StoreAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "appends_total",
				Help:      "Total number of message appends by result",
			},
			[]string{"result"},
		),

		StoreAppendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "append_duration_seconds",
				Help:      "Time spent appending a message to the store",
				Buckets:   prometheus.DefBuckets,
			},
		),

		RelayEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "events_total",
				Help:      "Total number of inbound events handled by the relay",
			},
			[]string{"kind", "result"},
		),

		PresenceConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "presence",
				Name:      "connections",
				Help:      "Number of connections currently registered",
			},
		),

		PresenceDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "presence",
				Name:      "deliveries_total",
				Help:      "Total number of per-connection deliveries by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.StoreAppends,
		m.StoreAppendDuration,
		m.RelayEvents,
		m.PresenceConnections,
		m.PresenceDeliveries,
	)
	return m
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAppend records the outcome and latency of a store append.
func (m *Metrics) ObserveAppend(start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreAppendDuration.Observe(time.Since(start).Seconds())
	m.StoreAppends.WithLabelValues(result(err)).Inc()
}

// RecordEvent counts an inbound event of the given kind (join, send, leave).
func (m *Metrics) RecordEvent(kind string, err error) {
	if m == nil {
		return
	}
	m.RelayEvents.WithLabelValues(kind, result(err)).Inc()
}

// SetConnections updates the registered connection gauge.
func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.PresenceConnections.Set(float64(n))
}

// RecordDelivery counts one delivery attempt to a single connection.
func (m *Metrics) RecordDelivery(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PresenceDeliveries.WithLabelValues("failed").Inc()
		return
	}
	m.PresenceDeliveries.WithLabelValues("ok").Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
