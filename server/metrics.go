package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Zeppelin-and-Pails/Victualiser/metric"
)

// serverMetrics holds Prometheus metrics for server query operations.
type serverMetrics struct {
	queriesTotal *prometheus.CounterVec // By operation: fields, project, aggregate
	skippedTotal *prometheus.CounterVec // By reason: parse, missing_key
}

// newServerMetrics creates and registers server metrics with the provided registry.
func newServerMetrics(registry *metric.MetricsRegistry) (*serverMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &serverMetrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "server",
			Name:      "queries_total",
			Help:      "Total number of queries served",
		}, []string{"operation"}),

		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "server",
			Name:      "skipped_total",
			Help:      "Total number of records skipped during queries",
		}, []string{"reason"}),
	}

	if err := registry.RegisterCounterVec("server", "queries_total", m.queriesTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("server", "skipped_total", m.skippedTotal); err != nil {
		return nil, err
	}

	return m, nil
}

// recordQuery records one served query.
func (m *serverMetrics) recordQuery(operation string) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(operation).Inc()
}

// recordSkip records one record skipped during a query.
func (m *serverMetrics) recordSkip(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}
