package pubsub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values identifying the manager variant.
const (
	variantText   = "text"
	variantBinary = "binary"
)

// Metrics holds the Prometheus instrumentation for subscription managers.
// One Metrics value may be shared by any number of managers; the variant
// label separates text from binary traffic. A nil *Metrics disables
// instrumentation.
type Metrics struct {
	established  *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	listenerErrs *prometheus.CounterVec
	connFailures *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg. Pass
// prometheus.DefaultRegisterer to use the global registry; a nil reg means
// the same.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		established: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redismux_subscriptions_established_total",
				Help: "Number of times a live subscription was established, including resubscriptions",
			},
			[]string{"variant"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redismux_deliveries_total",
				Help: "Number of listener invocations dispatched for received messages",
			},
			[]string{"variant"},
		),
		listenerErrs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redismux_listener_errors_total",
				Help: "Number of listener invocations that returned an error or panicked",
			},
			[]string{"variant"},
		),
		connFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redismux_connection_failures_total",
				Help: "Number of subscription attempts that ended with a connection or provider error",
			},
			[]string{"variant"},
		),
	}
}

func (m *Metrics) subscriptionEstablished(variant string) {
	if m == nil {
		return
	}
	m.established.WithLabelValues(variant).Inc()
}

func (m *Metrics) delivery(variant string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(variant).Inc()
}

func (m *Metrics) listenerError(variant string) {
	if m == nil {
		return
	}
	m.listenerErrs.WithLabelValues(variant).Inc()
}

func (m *Metrics) connectionFailure(variant string) {
	if m == nil {
		return
	}
	m.connFailures.WithLabelValues(variant).Inc()
}
