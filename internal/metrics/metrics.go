// Package metrics exposes client-side Prometheus counters for lnd RPC traffic.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client counters. A nil *Metrics records nothing.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Streams  *prometheus.CounterVec
	Connects *prometheus.CounterVec
	Retries  *prometheus.CounterVec
}

// New registers the counters on registry, or on the default registerer when
// registry is nil. Registering twice on the same registry returns the
// counters already present, so several clients can share one registry.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Metrics{
		Calls: register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lndclient_calls_total",
			Help: "Unary RPCs sent to lnd by method and status code",
		}, []string{"method", "code"})),
		Streams: register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lndclient_streams_opened_total",
			Help: "Streaming RPCs opened to lnd by method and status code",
		}, []string{"method", "code"})),
		Connects: register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lndclient_connects_total",
			Help: "Connection attempts by outcome",
		}, []string{"outcome"})),
		Retries: register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lndclient_stream_retries_total",
			Help: "Stream reconnects after transient failures by method",
		}, []string{"method"})),
	}
}

func register(registry prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveCall counts a finished unary call.
func (m *Metrics) ObserveCall(method, code string) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(method, code).Inc()
}

// ObserveStream counts a stream open attempt.
func (m *Metrics) ObserveStream(method, code string) {
	if m == nil {
		return
	}
	m.Streams.WithLabelValues(method, code).Inc()
}

// ObserveConnect counts a Connect outcome ("ok" or an error kind).
func (m *Metrics) ObserveConnect(outcome string) {
	if m == nil {
		return
	}
	m.Connects.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts a stream reconnect.
func (m *Metrics) ObserveRetry(method string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(method).Inc()
}
