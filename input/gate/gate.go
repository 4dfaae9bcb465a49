// Package gate implements the StreamGate input component: the long-lived
// stream listener that decides, per incoming event and under an external
// limit, whether to keep consuming or terminate cleanly.
package gate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/metric"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
	"github.com/Zeppelin-and-Pails/Victualiser/source"
)

const componentName = "stream-gate"

// stageName labels this stage in the pipeline-level metrics
const stageName = "gather"

// LimitType selects how the gate decides it has gathered enough
type LimitType string

// Limit modes, mutually exclusive
const (
	LimitCount LimitType = "count"
	LimitTime  LimitType = "time"
)

// StreamState tracks the gate's position in its lifecycle
type StreamState int

const (
	// StateInitializing means the provider connection is not yet established
	StateInitializing StreamState = iota
	// StateStreaming means events are being consumed
	StateStreaming
	// StateStopped is terminal; a stopped gate never resumes
	StateStopped
)

// String returns a string representation of the stream state
func (s StreamState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason records why the gate stopped
type StopReason string

// Stop reasons surfaced to the CLI for exit-status decisions
const (
	StopNone         StopReason = ""
	StopCountLimit   StopReason = "count_limit"
	StopTimeLimit    StopReason = "time_limit"
	StopRateLimited  StopReason = "rate_limited"
	StopConsumerGone StopReason = "consumer_gone"
	StopSinkFailure  StopReason = "sink_failure"
)

// Config holds configuration for the stream gate
type Config struct {
	Limit    LimitType `json:"limit"              schema:"type:enum,enum:count|time,description:Limit mode,required:true"`
	Count    int       `json:"count,omitempty"    schema:"type:int,description:Events to gather in count mode"`
	Duration string    `json:"duration,omitempty" schema:"type:string,description:Gathering window in time mode (Go duration)"`
	SinkPath string    `json:"sink_path"          schema:"type:string,description:Raw sink path (- for stdout),required:true"`

	parsedDuration time.Duration
}

// DefaultConfig returns the default configuration for the stream gate
func DefaultConfig() Config {
	return Config{
		Limit:    LimitCount,
		Count:    100,
		SinkPath: sink.StdioPath,
	}
}

// Validate checks configuration consistency and parses the duration
func (c *Config) Validate() error {
	switch c.Limit {
	case LimitCount:
		if c.Count <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("count mode requires a positive count, got %d", c.Count),
				"Gate", "Validate", "limit validation")
		}
	case LimitTime:
		if c.Duration == "" {
			return errors.WrapInvalid(
				fmt.Errorf("time mode requires a duration"),
				"Gate", "Validate", "limit validation")
		}
		parsed, err := time.ParseDuration(c.Duration)
		if err != nil {
			return errors.WrapInvalid(err, "Gate", "Validate", "duration parsing")
		}
		if parsed <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("time mode requires a positive duration, got %s", parsed),
				"Gate", "Validate", "limit validation")
		}
		c.parsedDuration = parsed
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown limit mode %q", c.Limit),
			"Gate", "Validate", "limit validation")
	}

	if c.SinkPath == "" {
		return errors.WrapInvalid(
			fmt.Errorf("sink path is required"),
			"Gate", "Validate", "sink validation")
	}

	return nil
}

// gateSchema defines the configuration schema for the stream gate
var gateSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"limit": {
			Type:        "enum",
			Description: "Limit mode deciding when gathering ends",
			Enum:        []string{"count", "time"},
			Default:     "count",
		},
		"count": {
			Type:        "int",
			Description: "Number of non-repost events to gather in count mode",
			Default:     100,
		},
		"duration": {
			Type:        "string",
			Description: "Gathering window in time mode, as a Go duration string",
		},
		"sink_path": {
			Type:        "string",
			Description: "Raw sink path, one JSON event per line (- for stdout)",
			Default:     "-",
		},
	},
	Required: []string{"limit", "sink_path"},
}

// repostProbe is the minimal view of an event needed for the repost check
type repostProbe struct {
	RetweetedStatus json.RawMessage `json:"retweeted_status"`
}

// rawSink is the write side of the raw sink; satisfied by sink.Writer
type rawSink interface {
	Append(line []byte) error
	Close() error
}

// Gate accepts or rejects raw events one at a time and appends survivors
// to the raw sink. It implements source.Handler; the Signal return values
// of OnEvent and OnError are its only control channel to the provider.
type Gate struct {
	config Config
	logger *slog.Logger
	writer rawSink

	// clock is injectable for time-mode tests
	clock func() time.Time

	mu         sync.RWMutex
	state      StreamState
	started    time.Time
	createdAt  time.Time
	stopReason StopReason
	stopErr    error
	quiet      bool

	accepted     atomic.Int64
	skipped      atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Int64 // unix nanos

	errorLog *rate.Limiter
	metrics  *gateMetrics
	core     *metric.Metrics
}

// New creates a stream gate from configuration. The sink is not opened
// until Initialize; the factory performs no I/O.
func New(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "Gate", "New", "config unmarshal")
		}
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Gate", "New", "config validation")
	}

	metrics, err := newGateMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize gate metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	return &Gate{
		config:    config,
		logger:    deps.GetLoggerWithComponent(componentName),
		clock:     time.Now,
		state:     StateInitializing,
		createdAt: time.Now(),
		// At most one provider-error log line per 5s keeps a flapping
		// upstream from flooding the log
		errorLog: rate.NewLimiter(rate.Every(5*time.Second), 1),
		metrics:  metrics,
		core:     core,
	}, nil
}

// Initialize opens the raw sink and, in time mode, starts the clock
func (g *Gate) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.writer != nil {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Gate", "Initialize", "check sink state")
	}

	writer, err := sink.NewWriter(g.config.SinkPath)
	if err != nil {
		return errors.Wrap(err, "Gate", "Initialize", "raw sink open")
	}
	g.writer = writer
	g.started = g.clock()
	g.core.RecordStageStatus(stageName, metric.StageStarting)

	g.logger.Info("gate initialized",
		"limit", g.config.Limit,
		"count", g.config.Count,
		"duration", g.config.Duration,
		"sink", g.config.SinkPath)

	return nil
}

// Close releases the raw sink. Safe after any stop reason.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.writer == nil {
		return nil
	}
	err := g.writer.Close()
	g.writer = nil
	return err
}

// OnConnect moves the gate from Initializing to Streaming
func (g *Gate) OnConnect() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateInitializing {
		return
	}
	g.state = StateStreaming
	g.core.RecordStageStatus(stageName, metric.StageRunning)
	g.logger.Info("stream connected", "state", g.state.String())
}

// OnEvent decides whether to retain one event and whether to keep
// consuming. Repost events are skipped silently; accepted events are
// appended verbatim to the raw sink before the count check applies.
func (g *Gate) OnEvent(event source.Event) source.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateStopped {
		return source.Stop
	}
	g.lastActivity.Store(g.clock().UnixNano())
	g.core.RecordReceived(stageName, "event")

	// Time mode stops before accepting the triggering event
	if g.config.Limit == LimitTime && g.clock().Sub(g.started) > g.config.parsedDuration {
		g.stopLocked(StopTimeLimit, nil, false)
		return source.Stop
	}

	// An unparsable probe is not a repost; the raw write below is
	// unconditional for accepted events
	var probe repostProbe
	if err := json.Unmarshal(event.Data, &probe); err == nil {
		if len(probe.RetweetedStatus) > 0 && string(probe.RetweetedStatus) != "null" {
			g.skipped.Add(1)
			g.metrics.recordRepostSkipped()
			return source.Continue
		}
	}

	if err := g.writer.Append(event.Data); err != nil {
		if sink.IsConsumerGone(err) {
			// Downstream closed its end: a normal way for a pipe
			// consumer to say it has enough
			g.stopLocked(StopConsumerGone, err, true)
			return source.Stop
		}
		g.errorCount.Add(1)
		g.core.RecordError(stageName, "sink")
		g.stopLocked(StopSinkFailure, err, false)
		return source.Stop
	}

	count := g.accepted.Add(1)
	g.metrics.recordAccepted()
	g.core.RecordWritten(stageName, "raw")

	if g.config.Limit == LimitCount && count >= int64(g.config.Count) {
		g.stopLocked(StopCountLimit, nil, false)
		return source.Stop
	}

	return source.Continue
}

// OnError handles a provider status code. Rate limiting stops the stream;
// anything else is logged (throttled) and ignored.
func (g *Gate) OnError(code int) source.Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateStopped {
		return source.Stop
	}

	g.metrics.recordProviderError(code)

	if code == source.CodeRateLimited {
		g.logger.Warn("provider rate limit hit, stopping stream", "code", code)
		g.stopLocked(StopRateLimited, errors.ErrRateLimited, false)
		return source.Stop
	}

	g.errorCount.Add(1)
	g.core.RecordError(stageName, "provider")
	if g.errorLog.Allow() {
		g.logger.Warn("provider error, continuing", "code", code)
	}
	return source.Continue
}

// stopLocked transitions to the terminal Stopped state. Callers hold g.mu.
func (g *Gate) stopLocked(reason StopReason, err error, quiet bool) {
	if g.state == StateStopped {
		return
	}
	g.state = StateStopped
	g.stopReason = reason
	g.stopErr = err
	g.quiet = quiet
	g.metrics.recordStop(string(reason))

	healthy := err == nil || quiet
	status := metric.StageStopped
	if !healthy {
		status = metric.StageFailed
	}
	g.core.RecordStageStatus(stageName, status)
	g.core.RecordHealthStatus(stageName, healthy)

	g.logger.Info("stream stopped",
		"reason", reason,
		"accepted", g.accepted.Load(),
		"reposts_skipped", g.skipped.Load(),
		"quiet", quiet)
}

// State returns the gate's current lifecycle state
func (g *Gate) State() StreamState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Accepted returns the number of events written to the raw sink
func (g *Gate) Accepted() int64 {
	return g.accepted.Load()
}

// Skipped returns the number of repost events silently dropped
func (g *Gate) Skipped() int64 {
	return g.skipped.Load()
}

// StopReason returns why the gate stopped, or StopNone while running
func (g *Gate) StopReason() StopReason {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stopReason
}

// Quiet reports whether the stop should be treated as a clean exit even
// though gathering ended early (downstream consumer gone).
func (g *Gate) Quiet() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.quiet
}

// Err returns the error that stopped the gate, if any
func (g *Gate) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stopErr
}

// Meta returns basic component information
func (g *Gate) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "input",
		Description: "Filters a live event stream and persists accepted raw events",
		Version:     "1.0.0",
	}
}

// InputPorts returns the upstream stream port
func (g *Gate) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "stream",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Upstream provider event stream",
		},
	}
}

// OutputPorts returns the raw sink port
func (g *Gate) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "raw_sink",
			Direction: component.DirectionOutput,
			Required:  true,
			Config: component.FilePort{
				Path:   g.config.SinkPath,
				Append: true,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (g *Gate) ConfigSchema() component.ConfigSchema {
	return gateSchema
}

// Health returns the current health status of the gate
func (g *Gate) Health() component.HealthStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	status := component.HealthStatus{
		Healthy:    g.state != StateStopped || g.stopErr == nil || g.quiet,
		LastCheck:  time.Now(),
		ErrorCount: int(g.errorCount.Load()),
		Uptime:     time.Since(g.createdAt),
	}
	if g.stopErr != nil {
		status.LastError = g.stopErr.Error()
	}
	return status
}

// DataFlow returns current data flow metrics for the gate
func (g *Gate) DataFlow() component.FlowMetrics {
	accepted := g.accepted.Load()
	errorCount := g.errorCount.Load()

	var errorRate float64
	if accepted > 0 {
		errorRate = float64(errorCount) / float64(accepted)
	}

	var perSecond float64
	if uptime := time.Since(g.createdAt).Seconds(); uptime > 0 {
		perSecond = float64(accepted) / uptime
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      time.Unix(0, g.lastActivity.Load()),
	}
}

// Register registers the stream gate component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        componentName,
		Factory:     New,
		Schema:      gateSchema,
		Type:        "input",
		Protocol:    "file",
		Domain:      "ingest",
		Description: "Filters a live event stream under count/time limits and persists accepted raw events",
		Version:     "1.0.0",
	})
}
