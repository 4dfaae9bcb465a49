package gate

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Zeppelin-and-Pails/Victualiser/metric"
)

// gateMetrics holds Prometheus metrics for stream gate operations.
type gateMetrics struct {
	acceptedTotal  prometheus.Counter
	repostsSkipped prometheus.Counter
	providerErrors *prometheus.CounterVec // By provider code
	stopsTotal     *prometheus.CounterVec // By stop reason
}

// newGateMetrics creates and registers gate metrics with the provided registry.
func newGateMetrics(registry *metric.MetricsRegistry) (*gateMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &gateMetrics{
		acceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "gate",
			Name:      "accepted_total",
			Help:      "Total number of non-repost events written to the raw sink",
		}),

		repostsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "gate",
			Name:      "reposts_skipped_total",
			Help:      "Total number of repost events dropped without write",
		}),

		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "gate",
			Name:      "provider_errors_total",
			Help:      "Total number of provider status codes received",
		}, []string{"code"}),

		stopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "victualiser",
			Subsystem: "gate",
			Name:      "stops_total",
			Help:      "Stream stops by reason",
		}, []string{"reason"}),
	}

	if err := registry.RegisterCounter("gate", "accepted_total", m.acceptedTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("gate", "reposts_skipped_total", m.repostsSkipped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("gate", "provider_errors_total", m.providerErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("gate", "stops_total", m.stopsTotal); err != nil {
		return nil, err
	}

	return m, nil
}

// recordAccepted records one event written to the raw sink.
func (m *gateMetrics) recordAccepted() {
	if m == nil {
		return
	}
	m.acceptedTotal.Inc()
}

// recordRepostSkipped records one repost dropped without a write.
func (m *gateMetrics) recordRepostSkipped() {
	if m == nil {
		return
	}
	m.repostsSkipped.Inc()
}

// recordProviderError records one provider status code.
func (m *gateMetrics) recordProviderError(code int) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(strconv.Itoa(code)).Inc()
}

// recordStop records the stream stop reason.
func (m *gateMetrics) recordStop(reason string) {
	if m == nil {
		return
	}
	m.stopsTotal.WithLabelValues(reason).Inc()
}
