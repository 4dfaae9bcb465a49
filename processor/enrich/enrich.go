// Package enrich implements the Enricher processor: a pure per-record
// transform from raw stream events to the enrichment schema, applied
// in order over a raw sink.
package enrich

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/metric"
	"github.com/Zeppelin-and-Pails/Victualiser/record"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
)

const componentName = "enricher"

// stageName labels this stage in the pipeline-level metrics
const stageName = "transform"

// clientPattern extracts the client name out of the source markup
// fragment, e.g. `<a href="x">Web App</a>` yields "Web App".
var clientPattern = regexp.MustCompile(`>(.+)</a>`)

// Config holds configuration for the enricher
type Config struct {
	StrictClient bool   `json:"strict_client"         schema:"type:bool,description:Fail the run when client extraction misses"`
	InputPath    string `json:"input_path,omitempty"  schema:"type:string,description:Raw sink path (- for stdin)"`
	OutputPath   string `json:"output_path,omitempty" schema:"type:string,description:Enriched sink path (- for stdout)"`
}

// DefaultConfig returns the default configuration for the enricher.
// A client-extraction miss is a data-integrity error, so strict mode is
// the default.
func DefaultConfig() Config {
	return Config{
		StrictClient: true,
		InputPath:    sink.StdioPath,
		OutputPath:   sink.StdioPath,
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.InputPath == "" || c.OutputPath == "" {
		return errors.WrapInvalid(
			fmt.Errorf("input and output paths are required"),
			"Enricher", "Validate", "path validation")
	}
	return nil
}

// enrichSchema defines the configuration schema for the enricher
var enrichSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"strict_client": {
			Type:        "bool",
			Description: "Fail the whole run when the client name pattern does not match; false downgrades to skip-with-warning",
			Default:     true,
		},
		"input_path": {
			Type:        "string",
			Description: "Raw sink path, one JSON event per line (- for stdin)",
			Default:     "-",
		},
		"output_path": {
			Type:        "string",
			Description: "Enriched sink path (- for stdout)",
			Default:     "-",
		},
	},
	Required: []string{},
}

// Stats summarizes one enrichment pass
type Stats struct {
	Read     int // lines parsed as raw records
	Enriched int // records written to the output sink
	Skipped  int // unparsable lines and, in non-strict mode, pattern misses
}

// Enricher transforms raw records into enriched records, 1:1 and
// order-preserving
type Enricher struct {
	config   Config
	logger   *slog.Logger
	analyzer *Analyzer
	metrics  *enrichMetrics
	core     *metric.Metrics

	createdAt    time.Time
	mu           sync.RWMutex
	running      bool
	transformed  atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Int64 // unix nanos
}

// New creates an enricher from configuration
func New(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "Enricher", "New", "config unmarshal")
		}
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Enricher", "New", "config validation")
	}

	metrics, err := newEnrichMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize enricher metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	return &Enricher{
		config:    config,
		logger:    deps.GetLoggerWithComponent(componentName),
		analyzer:  NewAnalyzer(),
		metrics:   metrics,
		core:      core,
		createdAt: time.Now(),
	}, nil
}

// normalize collapses newlines to spaces and strips carriage returns
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}

// Transform derives one enriched record from one raw record. Pure: no
// cross-record state, deterministic for identical input.
func (e *Enricher) Transform(raw record.Raw) (record.Enriched, error) {
	start := time.Now()

	match := clientPattern.FindStringSubmatch(raw.Source)
	if match == nil {
		e.metrics.recordSkip("client_pattern")
		return record.Enriched{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrClientPattern, raw.Source),
			"Enricher", "Transform", "client extraction")
	}

	nounPhrases, err := e.analyzer.NounPhrases(raw.Text)
	if err != nil {
		e.errorCount.Add(1)
		return record.Enriched{}, errors.Wrap(err, "Enricher", "Transform", "noun phrase extraction")
	}

	var description *string
	if raw.User.Description != nil && *raw.User.Description != "" {
		normalized := normalize(*raw.User.Description)
		description = &normalized
	}

	var place *record.EnrichedPlace
	if raw.Place != nil {
		place = &record.EnrichedPlace{
			Type:     raw.Place.PlaceType,
			FullName: raw.Place.FullName,
			Country:  raw.Place.Country,
		}
	}

	enriched := record.Enriched{
		Text:        normalize(raw.Text),
		CreatedAt:   raw.CreatedAt,
		Source:      match[1],
		SourceFull:  raw.Source,
		Retweets:    raw.RetweetCount,
		Favorites:   raw.FavoriteCount,
		Language:    raw.Lang,
		Sentiment:   e.analyzer.Score(raw.Text),
		NounPhrases: nounPhrases,
		User: record.EnrichedUser{
			Name:        raw.User.Name,
			ScreenName:  raw.User.ScreenName,
			Description: description,
			Location:    raw.User.Location,
			TimeZone:    raw.User.TimeZone,
			Lang:        raw.User.Lang,
			Friends:     raw.User.FriendsCount,
			Followers:   raw.User.FollowersCount,
			Statuses:    raw.User.StatusesCount,
			Favourites:  raw.User.FavouritesCount,
			Listed:      raw.User.ListedCount,
			Verified:    raw.User.Verified,
			Protected:   raw.User.Protected,
		},
		Place: place,
	}

	e.transformed.Add(1)
	e.lastActivity.Store(time.Now().UnixNano())
	e.metrics.recordTransform(time.Since(start))
	e.core.RecordProcessingDuration(stageName, "transform", time.Since(start))

	return enriched, nil
}

// Run enriches every line of r into w, 1:1 and order-preserving.
// Unparsable lines are skipped and counted; a truncated final line ends
// the pass quietly. Decode/transform and writing are pipelined but the
// single channel between them preserves input order.
func (e *Enricher) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	e.core.RecordStageStatus(stageName, metric.StageRunning)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.core.RecordStageStatus(stageName, metric.StageStopped)
	}()

	var stats Stats
	lines := make(chan []byte, 64)

	group, ctx := errgroup.WithContext(ctx)

	writer := bufio.NewWriter(w)
	group.Go(func() error {
		for line := range lines {
			if _, err := writer.Write(line); err != nil {
				return errors.WrapFatal(err, "Enricher", "Run", "enriched sink write")
			}
			if err := writer.WriteByte('\n'); err != nil {
				return errors.WrapFatal(err, "Enricher", "Run", "enriched sink write")
			}
			e.core.RecordWritten(stageName, "enriched")
		}
		if err := writer.Flush(); err != nil {
			return errors.WrapFatal(err, "Enricher", "Run", "enriched sink flush")
		}
		return nil
	})

	group.Go(func() error {
		defer close(lines)

		scanner := sink.NewScanner(r)
		for scanner.Scan() {
			var raw record.Raw
			if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
				if scanner.Truncated() {
					// Partial final write by the producer: end of data
					e.logger.Debug("dropping truncated final line", "line", scanner.Line())
					break
				}
				stats.Skipped++
				e.metrics.recordSkip("parse")
				e.core.RecordProcessed(stageName, "raw", "skipped")
				e.logger.Warn("skipping unparsable line", "line", scanner.Line(), "error", err)
				continue
			}
			stats.Read++
			e.core.RecordReceived(stageName, "raw")

			enriched, err := e.Transform(raw)
			if err != nil {
				if stderrors.Is(err, errors.ErrClientPattern) && !e.config.StrictClient {
					stats.Skipped++
					e.core.RecordProcessed(stageName, "raw", "skipped")
					e.logger.Warn("skipping record without client markup", "line", scanner.Line())
					continue
				}
				e.core.RecordError(stageName, "transform")
				return err
			}
			e.core.RecordProcessed(stageName, "raw", "enriched")

			out, err := json.Marshal(enriched)
			if err != nil {
				return errors.WrapFatal(err, "Enricher", "Run", "record marshal")
			}

			select {
			case lines <- out:
				stats.Enriched++
			case <-ctx.Done():
				return errors.WrapTransient(ctx.Err(), "Enricher", "Run", "context check")
			}
		}
		return scanner.Err()
	})

	if err := group.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// Meta returns basic component information
func (e *Enricher) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "processor",
		Description: "Derives normalized fields, sentiment scores, and noun phrases from raw records",
		Version:     "1.0.0",
	}
}

// InputPorts returns the raw sink port
func (e *Enricher) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "raw_sink",
			Direction: component.DirectionInput,
			Required:  true,
			Config: component.FilePort{
				Path: e.config.InputPath,
			},
		},
	}
}

// OutputPorts returns the enriched sink port
func (e *Enricher) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "enriched_sink",
			Direction: component.DirectionOutput,
			Required:  true,
			Config: component.FilePort{
				Path:   e.config.OutputPath,
				Append: true,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (e *Enricher) ConfigSchema() component.ConfigSchema {
	return enrichSchema
}

// Health returns the current health status of the enricher
func (e *Enricher) Health() component.HealthStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(e.errorCount.Load()),
		Uptime:     time.Since(e.createdAt),
	}
}

// DataFlow returns current data flow metrics for the enricher
func (e *Enricher) DataFlow() component.FlowMetrics {
	transformed := e.transformed.Load()
	errorCount := e.errorCount.Load()

	var errorRate float64
	if transformed > 0 {
		errorRate = float64(errorCount) / float64(transformed)
	}

	var perSecond float64
	if uptime := time.Since(e.createdAt).Seconds(); uptime > 0 {
		perSecond = float64(transformed) / uptime
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      time.Unix(0, e.lastActivity.Load()),
	}
}

// Register registers the enricher component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        componentName,
		Factory:     New,
		Schema:      enrichSchema,
		Type:        "processor",
		Protocol:    "file",
		Domain:      "enrich",
		Description: "Pure per-record transform from raw events to the enrichment schema",
		Version:     "1.0.0",
	})
}
