package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage status values reported through StageStatus
const (
	StageStopped  = 0
	StageStarting = 1
	StageRunning  = 2
	StageStopping = 3
	StageFailed   = 4
)

// Metrics contains all pipeline-level metrics (not stage-specific)
type Metrics struct {
	// Stage metrics
	StageStatus        *prometheus.GaugeVec
	RecordsReceived    *prometheus.CounterVec
	RecordsProcessed   *prometheus.CounterVec
	RecordsWritten     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	HealthCheckStatus  *prometheus.GaugeVec

	// Upstream source metrics
	SourceConnected  prometheus.Gauge
	SourceReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		StageStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "victualiser",
				Subsystem: "stage",
				Name:      "status",
				Help:      "Stage status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"stage"},
		),

		RecordsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "victualiser",
				Subsystem: "records",
				Name:      "received_total",
				Help:      "Total number of records received",
			},
			[]string{"stage", "type"},
		),

		RecordsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "victualiser",
				Subsystem: "records",
				Name:      "processed_total",
				Help:      "Total number of records processed",
			},
			[]string{"stage", "type", "status"},
		),

		RecordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "victualiser",
				Subsystem: "records",
				Name:      "written_total",
				Help:      "Total number of records written to a sink",
			},
			[]string{"stage", "sink"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "victualiser",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Record processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "victualiser",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"stage", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "victualiser",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"stage"},
		),

		SourceConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "victualiser",
				Subsystem: "source",
				Name:      "connected",
				Help:      "Upstream source connection status (0=disconnected, 1=connected)",
			},
		),

		SourceReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "victualiser",
				Subsystem: "source",
				Name:      "reconnects_total",
				Help:      "Total number of upstream source reconnections",
			},
		),
	}
}

// RecordStageStatus updates stage status metric
func (c *Metrics) RecordStageStatus(stage string, status int) {
	if c == nil {
		return
	}
	c.StageStatus.WithLabelValues(stage).Set(float64(status))
}

// RecordReceived increments received record counter
func (c *Metrics) RecordReceived(stage, recordType string) {
	if c == nil {
		return
	}
	c.RecordsReceived.WithLabelValues(stage, recordType).Inc()
}

// RecordProcessed increments processed record counter
func (c *Metrics) RecordProcessed(stage, recordType, status string) {
	if c == nil {
		return
	}
	c.RecordsProcessed.WithLabelValues(stage, recordType, status).Inc()
}

// RecordWritten increments written record counter
func (c *Metrics) RecordWritten(stage, sink string) {
	if c == nil {
		return
	}
	c.RecordsWritten.WithLabelValues(stage, sink).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(stage, operation string, duration time.Duration) {
	if c == nil {
		return
	}
	c.ProcessingDuration.WithLabelValues(stage, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(stage, errorType string) {
	if c == nil {
		return
	}
	c.ErrorsTotal.WithLabelValues(stage, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(stage string, healthy bool) {
	if c == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(stage).Set(value)
}

// RecordSourceStatus updates upstream connection status
func (c *Metrics) RecordSourceStatus(connected bool) {
	if c == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	c.SourceConnected.Set(value)
}

// RecordSourceReconnect increments reconnection counter
func (c *Metrics) RecordSourceReconnect() {
	if c == nil {
		return
	}
	c.SourceReconnects.Inc()
}
