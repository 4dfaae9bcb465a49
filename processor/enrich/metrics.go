package enrich

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Zeppelin-and-Pails/Victualiser/metric"
)

// enrichMetrics holds Prometheus metrics for enricher operations.
type enrichMetrics struct {
	transformsTotal   prometheus.Counter
	skippedTotal      *prometheus.CounterVec // By reason: parse, client_pattern
	transformDuration prometheus.Histogram
}

// newEnrichMetrics creates and registers enricher metrics with the provided registry.
func newEnrichMetrics(registry *metric.MetricsRegistry) (*enrichMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &enrichMetrics{
		transformsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "enrich",
			Name:      "transforms_total",
			Help:      "Total number of records transformed",
		}),

		skippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "enrich",
			Name:      "skipped_total",
			Help:      "Total number of records skipped",
		}, []string{"reason"}),

		transformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "victualiser",
			Subsystem: "enrich",
			Name:      "transform_duration_seconds",
			Help:      "Per-record transform duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	if err := registry.RegisterCounter("enrich", "transforms_total", m.transformsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("enrich", "skipped_total", m.skippedTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("enrich", "transform_duration", m.transformDuration); err != nil {
		return nil, err
	}

	return m, nil
}

// recordTransform records one successful record transform.
func (m *enrichMetrics) recordTransform(duration time.Duration) {
	if m == nil {
		return
	}
	m.transformsTotal.Inc()
	m.transformDuration.Observe(duration.Seconds())
}

// recordSkip records one skipped record.
func (m *enrichMetrics) recordSkip(reason string) {
	if m == nil {
		return
	}
	m.skippedTotal.WithLabelValues(reason).Inc()
}
