// Package metrics exposes Prometheus counters for admission decisions
// and response outcomes.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the guard's Prometheus collectors.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	denialsTotal  *prometheus.CounterVec
	responses     *prometheus.CounterVec
	storageErrors prometheus.Counter
}

// New registers the collectors on reg (use prometheus.DefaultRegisterer
// for the default registry).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webguard_requests_total",
			Help: "Admission decisions by outcome.",
		}, []string{"decision"}),
		denialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webguard_denials_total",
			Help: "Denied requests by reason kind.",
		}, []string{"kind"}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webguard_responses_total",
			Help: "Upstream responses by status class, recorded post-response.",
		}, []string{"class"}),
		storageErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "webguard_storage_errors_total",
			Help: "Storage backend failures observed during admission.",
		}),
	}
}

// Decision records one admission decision; kind is empty for allows.
func (m *Metrics) Decision(allowed bool, kind string) {
	if m == nil {
		return
	}
	if allowed {
		m.requestsTotal.WithLabelValues("allowed").Inc()
		return
	}
	m.requestsTotal.WithLabelValues("denied").Inc()
	m.denialsTotal.WithLabelValues(kind).Inc()
}

// Response records a completed response's status class ("2xx", "4xx", ...).
func (m *Metrics) Response(status int) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
}

// StorageError records a backend failure.
func (m *Metrics) StorageError() {
	if m == nil {
		return
	}
	m.storageErrors.Inc()
}
