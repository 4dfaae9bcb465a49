// Package config loads the single pipeline configuration file. The
// Config struct is constructed once at process start and passed
// explicitly into each stage constructor; stages never read files or
// globals themselves.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
	"github.com/Zeppelin-and-Pails/Victualiser/input/gate"
	"github.com/Zeppelin-and-Pails/Victualiser/server"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
)

// Config is the complete pipeline configuration
type Config struct {
	Limit   LimitConfig   `yaml:"limit"   json:"limit"`
	Filter  FilterConfig  `yaml:"filter"  json:"filter"`
	Paths   PathsConfig   `yaml:"paths"   json:"paths"`
	Source  SourceConfig  `yaml:"source"  json:"source"`
	Enrich  EnrichConfig  `yaml:"enrich"  json:"enrich"`
	Serve   ServeConfig   `yaml:"serve"   json:"serve"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LimitConfig bounds the gathering stage
type LimitConfig struct {
	Type     string `yaml:"type"               json:"type"` // count | time
	Count    int    `yaml:"count,omitempty"    json:"count,omitempty"`
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// FilterConfig selects which upstream events are delivered
type FilterConfig struct {
	Track     []string  `yaml:"track,omitempty"     json:"track,omitempty"`
	Locations []float64 `yaml:"locations,omitempty" json:"locations,omitempty"`
}

// PathsConfig holds output-path templates. Templates may embed {dir}
// and {timestamp} placeholders.
type PathsConfig struct {
	BaseDir          string `yaml:"base_dir"          json:"base_dir"`
	RawTemplate      string `yaml:"raw_template"      json:"raw_template"`
	EnrichedTemplate string `yaml:"enriched_template" json:"enriched_template"`
	TableTemplate    string `yaml:"table_template"    json:"table_template"`
	TimestampFormat  string `yaml:"timestamp_format"  json:"timestamp_format"`
}

// SourceConfig selects and parameterizes the upstream provider adapter
type SourceConfig struct {
	Provider   string `yaml:"provider"              json:"provider"` // replay | websocket | nats
	URL        string `yaml:"url,omitempty"         json:"url,omitempty"`
	Subject    string `yaml:"subject,omitempty"     json:"subject,omitempty"`
	ReplayFile string `yaml:"replay_file,omitempty" json:"replay_file,omitempty"`
}

// EnrichConfig parameterizes the enrichment stage
type EnrichConfig struct {
	StrictClient *bool `yaml:"strict_client,omitempty" json:"strict_client,omitempty"`
}

// ServeConfig parameterizes the serving stage
type ServeConfig struct {
	MissingKey string `yaml:"missing_key,omitempty" json:"missing_key,omitempty"` // fail | skip
}

// MetricsConfig controls the optional Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"` // empty disables the endpoint
}

// LoggingConfig controls slog setup
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"  json:"level,omitempty"`  // debug | info | warn | error
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json | text
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Limit: LimitConfig{
			Type:  string(gate.LimitCount),
			Count: 100,
		},
		Paths: PathsConfig{
			BaseDir:          "data",
			RawTemplate:      "{dir}/raw_{timestamp}.jsonl",
			EnrichedTemplate: "{dir}/enriched_{timestamp}.jsonl",
			TableTemplate:    "{dir}/table_{timestamp}.tsv",
			TimestampFormat:  "20060102_150405",
		},
		Source: SourceConfig{
			Provider: "replay",
		},
		Serve: ServeConfig{
			MissingKey: string(server.MissingKeyFail),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads, schema-validates, and structurally validates one YAML
// configuration file. Missing sections fall back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "config file read")
	}

	if err := ValidateSchema(data); err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "schema validation")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "config unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "config validation")
	}

	return cfg, nil
}

// Validate checks cross-field consistency
func (c *Config) Validate() error {
	switch c.Limit.Type {
	case string(gate.LimitCount):
		if c.Limit.Count <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("count limit requires a positive count"),
				"Config", "Validate", "limit validation")
		}
	case string(gate.LimitTime):
		if _, err := time.ParseDuration(c.Limit.Duration); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "duration parsing")
		}
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown limit type %q", c.Limit.Type),
			"Config", "Validate", "limit validation")
	}

	switch c.Source.Provider {
	case "replay":
	case "websocket":
		if c.Source.URL == "" {
			return errors.WrapInvalid(
				fmt.Errorf("websocket provider requires a url"),
				"Config", "Validate", "source validation")
		}
	case "nats":
		if c.Source.URL == "" || c.Source.Subject == "" {
			return errors.WrapInvalid(
				fmt.Errorf("nats provider requires url and subject"),
				"Config", "Validate", "source validation")
		}
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown source provider %q", c.Source.Provider),
			"Config", "Validate", "source validation")
	}

	switch c.Serve.MissingKey {
	case "", string(server.MissingKeyFail), string(server.MissingKeySkip):
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown missing-key policy %q", c.Serve.MissingKey),
			"Config", "Validate", "serve validation")
	}

	return nil
}

// StrictClient returns the enrichment strict mode, defaulting to true
func (c *Config) StrictClient() bool {
	if c.Enrich.StrictClient == nil {
		return true
	}
	return *c.Enrich.StrictClient
}

// expand substitutes the {dir} and {timestamp} placeholders
func (p PathsConfig) expand(template string, now time.Time) string {
	format := p.TimestampFormat
	if format == "" {
		format = "20060102_150405"
	}
	expanded := strings.ReplaceAll(template, "{dir}", p.BaseDir)
	return strings.ReplaceAll(expanded, "{timestamp}", now.Format(format))
}

// RawPath resolves the raw sink path for a run started at now
func (p PathsConfig) RawPath(now time.Time) string {
	if p.RawTemplate == "" {
		return sink.StdioPath
	}
	return p.expand(p.RawTemplate, now)
}

// EnrichedPath resolves the enriched sink path for a run started at now
func (p PathsConfig) EnrichedPath(now time.Time) string {
	if p.EnrichedTemplate == "" {
		return sink.StdioPath
	}
	return p.expand(p.EnrichedTemplate, now)
}

// TablePath resolves the projection table path for a run started at now
func (p PathsConfig) TablePath(now time.Time) string {
	if p.TableTemplate == "" {
		return sink.StdioPath
	}
	return p.expand(p.TableTemplate, now)
}
