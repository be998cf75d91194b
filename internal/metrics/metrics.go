package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "device_agent"

// Cycle results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the agent collectors on a private registry, so tests and
// multiple agents in one process never collide on the default registry.
type Metrics struct {
	Cycles        *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	RetryAttempts *prometheus.CounterVec
	LastSuccess   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all agent collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Collection cycles by result.",
		}, []string{"result"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Snapshot delivery attempts by outcome.",
		}, []string{"outcome"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries scheduled after a failed attempt, by operation.",
		}, []string{"operation"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful cycle.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Cycles,
		m.Deliveries,
		m.RetryAttempts,
		m.LastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Gatherer exposes the registry to the HTTP handler.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) ObserveCycle(err error, at time.Time) {
	if err != nil {
		m.Cycles.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.Cycles.WithLabelValues(ResultSuccess).Inc()
	m.LastSuccess.Set(float64(at.Unix()))
}

func (m *Metrics) ObserveDelivery(outcome string) {
	m.Deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRetry(operation string) {
	m.RetryAttempts.WithLabelValues(operation).Inc()
}
