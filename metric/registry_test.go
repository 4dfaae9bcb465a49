package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestRegisterCounterDuplicate(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "victualiser",
		Subsystem: "test",
		Name:      "events_total",
		Help:      "test counter",
	})
	require.NoError(t, registry.RegisterCounter("gate", "events_total", counter))

	other := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "victualiser",
		Subsystem: "test",
		Name:      "other_total",
		Help:      "other counter",
	})
	assert.Error(t, registry.RegisterCounter("gate", "events_total", other))
}

func TestRegisterAndUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "victualiser",
		Subsystem: "test",
		Name:      "depth",
		Help:      "test gauge",
	})
	require.NoError(t, registry.RegisterGauge("gate", "depth", gauge))

	assert.True(t, registry.Unregister("gate", "depth"))
	assert.False(t, registry.Unregister("gate", "depth"))

	// Re-registration works after unregister
	assert.NoError(t, registry.RegisterGauge("gate", "depth", gauge))
}

func TestCoreMetricsRecording(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordReceived("gate", "raw")
	core.RecordReceived("gate", "raw")
	core.RecordProcessed("enricher", "raw", "ok")
	core.RecordWritten("gate", "raw_sink")
	core.RecordError("server", "missing_key")
	core.RecordProcessingDuration("enricher", "transform", 5*time.Millisecond)
	core.RecordStageStatus("gate", 2)
	core.RecordHealthStatus("gate", true)
	core.RecordSourceStatus(true)
	core.RecordSourceReconnect()

	assert.Equal(t, 2.0,
		testutil.ToFloat64(core.RecordsReceived.WithLabelValues("gate", "raw")))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(core.RecordsWritten.WithLabelValues("gate", "raw_sink")))
	assert.Equal(t, 2.0,
		testutil.ToFloat64(core.StageStatus.WithLabelValues("gate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.SourceConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.SourceReconnects))
}

func TestNilCoreMetricsAreSafe(t *testing.T) {
	var core *Metrics

	core.RecordStageStatus("gather", StageRunning)
	core.RecordReceived("gather", "event")
	core.RecordProcessed("transform", "raw", "enriched")
	core.RecordWritten("gather", "raw")
	core.RecordProcessingDuration("serve", "project", time.Millisecond)
	core.RecordError("gather", "sink")
	core.RecordHealthStatus("gather", true)
	core.RecordSourceStatus(false)
	core.RecordSourceReconnect()
}
