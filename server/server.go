// Package server implements the serving stage: flattening enriched
// records into a uniform field space and answering three query modes
// over an enriched sink (field discovery, projection, hierarchical
// frequency aggregation).
package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iancoleman/orderedmap"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/metric"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
)

const componentName = "server"

// stageName labels this stage in the pipeline-level metrics
const stageName = "serve"

// MissingKeyPolicy decides what happens when an aggregated record lacks
// a requested field
type MissingKeyPolicy string

// Missing-key policies. Fail is the safe default: a record is never
// dropped without signaling.
const (
	MissingKeyFail MissingKeyPolicy = "fail"
	MissingKeySkip MissingKeyPolicy = "skip"
)

// Config holds configuration for the server stage
type Config struct {
	InputPath  string           `json:"input_path,omitempty" schema:"type:string,description:Enriched sink path (- for stdin)"`
	MissingKey MissingKeyPolicy `json:"missing_key"          schema:"type:enum,enum:fail|skip,description:Missing aggregation key policy"`
}

// DefaultConfig returns the default configuration for the server
func DefaultConfig() Config {
	return Config{
		InputPath:  sink.StdioPath,
		MissingKey: MissingKeyFail,
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.MissingKey {
	case MissingKeyFail, MissingKeySkip:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown missing-key policy %q", c.MissingKey),
			"Server", "Validate", "policy validation")
	}
	if c.InputPath == "" {
		return errors.WrapInvalid(
			fmt.Errorf("input path is required"),
			"Server", "Validate", "path validation")
	}
	return nil
}

// serverSchema defines the configuration schema for the server
var serverSchema = component.ConfigSchema{
	Properties: map[string]component.PropertySchema{
		"input_path": {
			Type:        "string",
			Description: "Enriched sink path, one JSON record per line (- for stdin)",
			Default:     "-",
		},
		"missing_key": {
			Type:        "enum",
			Description: "What to do when an aggregated record lacks a requested field",
			Enum:        []string{"fail", "skip"},
			Default:     "fail",
		},
	},
	Required: []string{},
}

// Server answers queries over one enriched-record sink
type Server struct {
	config  Config
	logger  *slog.Logger
	metrics *serverMetrics
	core    *metric.Metrics

	createdAt    time.Time
	records      atomic.Int64
	skipped      atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Int64 // unix nanos
}

// New creates a server from configuration
func New(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, errors.WrapInvalid(err, "Server", "New", "config unmarshal")
		}
	}
	if config.MissingKey == "" {
		config.MissingKey = MissingKeyFail
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Server", "New", "config validation")
	}

	metrics, err := newServerMetrics(deps.MetricsRegistry)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize server metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	return &Server{
		config:    config,
		logger:    deps.GetLoggerWithComponent(componentName),
		metrics:   metrics,
		core:      core,
		createdAt: time.Now(),
	}, nil
}

// forEachRecord walks the sink, delivering each flattened record.
// Unparsable lines are skipped; an unparsable truncated tail ends the
// walk quietly.
func (s *Server) forEachRecord(r io.Reader, fn func(index int, flat *orderedmap.OrderedMap) error) error {
	scanner := sink.NewScanner(r)
	index := 0
	for scanner.Scan() {
		parsed, err := ParseRecord(scanner.Bytes())
		if err != nil {
			if scanner.Truncated() {
				break
			}
			s.skipped.Add(1)
			s.metrics.recordSkip("parse")
			s.logger.Warn("skipping unparsable line", "line", scanner.Line(), "error", err)
			continue
		}

		s.records.Add(1)
		s.lastActivity.Store(time.Now().UnixNano())
		s.core.RecordReceived(stageName, "enriched")

		if err := fn(index, Flatten(parsed)); err != nil {
			return err
		}
		index++
	}
	return scanner.Err()
}

// Fields reads the first available record, flattens it, and returns the
// sorted, deduplicated set of field names. It does not scan the rest of
// the sink.
func (s *Server) Fields(r io.Reader) ([]string, error) {
	s.metrics.recordQuery("fields")
	defer func(start time.Time) {
		s.core.RecordProcessingDuration(stageName, "fields", time.Since(start))
	}(time.Now())

	var fields []string
	found := false

	err := s.forEachRecord(r, func(_ int, flat *orderedmap.OrderedMap) error {
		fields = append([]string(nil), flat.Keys()...)
		sort.Strings(fields)
		found = true
		return errStopScan
	})
	if err != nil && err != errStopScan {
		return nil, errors.Wrap(err, "Server", "Fields", "sink read")
	}
	if !found {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no records in sink"),
			"Server", "Fields", "first record read")
	}

	return fields, nil
}

// errStopScan ends a forEachRecord walk early without failing it
var errStopScan = fmt.Errorf("stop scan")

// Project flattens every record and, when fields is nonempty, retains
// only those fields. Missing fields are simply absent from a record's
// projection; row order equals input order.
func (s *Server) Project(r io.Reader, fields []string) ([]*orderedmap.OrderedMap, error) {
	s.metrics.recordQuery("project")
	defer func(start time.Time) {
		s.core.RecordProcessingDuration(stageName, "project", time.Since(start))
	}(time.Now())

	rows := []*orderedmap.OrderedMap{}

	err := s.forEachRecord(r, func(_ int, flat *orderedmap.OrderedMap) error {
		if len(fields) == 0 {
			rows = append(rows, flat)
			return nil
		}
		projected := orderedmap.New()
		for _, field := range fields {
			if value, ok := flat.Get(field); ok {
				projected.Set(field, value)
			}
		}
		rows = append(rows, projected)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "Server", "Project", "sink read")
	}

	return rows, nil
}

// cellEscaper keeps cells on one line and free of literal separators;
// cell values keep their JSON encoding otherwise.
var cellEscaper = strings.NewReplacer("\t", `\t`, "\n", `\n`, "\r", `\r`)

// WriteTable renders projected rows as one TSV table: columns are the
// requested field order (or the first-seen union when unrestricted), one
// row per record in input order, empty cells for absent values. Tabs and
// newlines inside a cell are backslash-escaped.
func (s *Server) WriteTable(w io.Writer, rows []*orderedmap.OrderedMap, fields []string) error {
	columns := fields
	if len(columns) == 0 {
		seen := make(map[string]bool)
		for _, row := range rows {
			for _, key := range row.Keys() {
				if !seen[key] {
					seen[key] = true
					columns = append(columns, key)
				}
			}
		}
	}

	writer := bufio.NewWriter(w)

	if err := writeRow(writer, columns); err != nil {
		return errors.WrapFatal(err, "Server", "WriteTable", "header write")
	}

	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			value, ok := row.Get(column)
			if !ok {
				cells[i] = ""
				continue
			}
			cell, err := cellString(value)
			if err != nil {
				return errors.Wrap(err, "Server", "WriteTable", "cell encoding")
			}
			cells[i] = cell
		}
		if err := writeRow(writer, cells); err != nil {
			return errors.WrapFatal(err, "Server", "WriteTable", "row write")
		}
	}

	if err := writer.Flush(); err != nil {
		return errors.WrapFatal(err, "Server", "WriteTable", "table flush")
	}
	return nil
}

// writeRow emits one tab-separated line of escaped cells
func writeRow(w *bufio.Writer, cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if err := w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(cellEscaper.Replace(cell)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// Aggregate flattens every record and walks the ordered field list
// through the tree, counting occurrences of the final field's values.
// A record missing a requested field follows the configured policy.
func (s *Server) Aggregate(r io.Reader, fields []string) (*Tree, error) {
	if len(fields) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("at least one field is required"),
			"Server", "Aggregate", "field validation")
	}
	s.metrics.recordQuery("aggregate")
	defer func(start time.Time) {
		s.core.RecordProcessingDuration(stageName, "aggregate", time.Since(start))
	}(time.Now())

	tree := NewTree()
	values := make([]string, len(fields))

	err := s.forEachRecord(r, func(index int, flat *orderedmap.OrderedMap) error {
		for i, field := range fields {
			value, ok := flat.Get(field)
			if !ok {
				if s.config.MissingKey == MissingKeySkip {
					s.skipped.Add(1)
					s.metrics.recordSkip("missing_key")
					s.logger.Warn("skipping record without aggregation key",
						"field", field, "record", index)
					return nil
				}
				s.errorCount.Add(1)
				s.core.RecordError(stageName, "missing_key")
				return errors.WrapInvalid(
					fmt.Errorf("%w: field %q on record %d", errors.ErrMissingField, field, index),
					"Server", "Aggregate", "key lookup")
			}
			values[i] = keyString(value)
		}
		return tree.Insert(values)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Server", "Aggregate", "sink read")
	}

	return tree, nil
}

// keyString coerces a flattened value into a tree key
func keyString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// cellString coerces a flattened value into a TSV cell
func cellString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", nil
	default:
		// Lists and residual objects keep their JSON encoding
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// Meta returns basic component information
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "output",
		Description: "Serves field discovery, projection, and aggregation over enriched records",
		Version:     "1.0.0",
	}
}

// InputPorts returns the enriched sink port
func (s *Server) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "enriched_sink",
			Direction: component.DirectionInput,
			Required:  true,
			Config: component.FilePort{
				Path: s.config.InputPath,
			},
		},
	}
}

// OutputPorts returns the query output port
func (s *Server) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "results",
			Direction:   component.DirectionOutput,
			Required:    false,
			Description: "Query results (TSV tables or aggregation trees)",
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (s *Server) ConfigSchema() component.ConfigSchema {
	return serverSchema
}

// Health returns the current health status of the server
func (s *Server) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		Uptime:     time.Since(s.createdAt),
	}
}

// DataFlow returns current data flow metrics for the server
func (s *Server) DataFlow() component.FlowMetrics {
	records := s.records.Load()
	errorCount := s.errorCount.Load()

	var errorRate float64
	if records > 0 {
		errorRate = float64(errorCount) / float64(records)
	}

	var perSecond float64
	if uptime := time.Since(s.createdAt).Seconds(); uptime > 0 {
		perSecond = float64(records) / uptime
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      time.Unix(0, s.lastActivity.Load()),
	}
}

// Register registers the server component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        componentName,
		Factory:     New,
		Schema:      serverSchema,
		Type:        "output",
		Protocol:    "file",
		Domain:      "serve",
		Description: "Flattens enriched records and serves projection and aggregation queries",
		Version:     "1.0.0",
	})
}
