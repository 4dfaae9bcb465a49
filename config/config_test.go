package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "count", cfg.Limit.Type)
	assert.Equal(t, 100, cfg.Limit.Count)
	assert.True(t, cfg.StrictClient())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
limit:
  type: time
  duration: 30s
filter:
  track:
    - coffee
    - tea
source:
  provider: websocket
  url: wss://stream.example.com/events
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "time", cfg.Limit.Type)
	assert.Equal(t, "30s", cfg.Limit.Duration)
	assert.Equal(t, []string{"coffee", "tea"}, cfg.Filter.Track)
	assert.Equal(t, "websocket", cfg.Source.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults
	assert.Equal(t, "data", cfg.Paths.BaseDir)
	assert.Equal(t, "fail", cfg.Serve.MissingKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
limit:
  type: count
  count: 5
mystery_section:
  value: 1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadEnum(t *testing.T) {
	path := writeConfig(t, `
limit:
  type: forever
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default ok", func(*Config) {}, false},
		{"zero count", func(c *Config) { c.Limit.Count = 0 }, true},
		{"time without duration", func(c *Config) {
			c.Limit.Type = "time"
			c.Limit.Duration = ""
		}, true},
		{"time with duration", func(c *Config) {
			c.Limit.Type = "time"
			c.Limit.Duration = "5m"
		}, false},
		{"unknown limit", func(c *Config) { c.Limit.Type = "bytes" }, true},
		{"websocket without url", func(c *Config) { c.Source.Provider = "websocket" }, true},
		{"nats without subject", func(c *Config) {
			c.Source.Provider = "nats"
			c.Source.URL = "nats://localhost:4222"
		}, true},
		{"nats complete", func(c *Config) {
			c.Source.Provider = "nats"
			c.Source.URL = "nats://localhost:4222"
			c.Source.Subject = "events.raw"
		}, false},
		{"unknown provider", func(c *Config) { c.Source.Provider = "carrier-pigeon" }, true},
		{"bad missing-key policy", func(c *Config) { c.Serve.MissingKey = "explode" }, true},
		{"skip policy ok", func(c *Config) { c.Serve.MissingKey = "skip" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStrictClientOverride(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.StrictClient())

	off := false
	cfg.Enrich.StrictClient = &off
	assert.False(t, cfg.StrictClient())
}

func TestPathTemplates(t *testing.T) {
	paths := PathsConfig{
		BaseDir:          "out",
		RawTemplate:      "{dir}/raw_{timestamp}.jsonl",
		EnrichedTemplate: "{dir}/enriched_{timestamp}.jsonl",
		TableTemplate:    "{dir}/table_{timestamp}.tsv",
		TimestampFormat:  "20060102_150405",
	}
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "out/raw_20260302_093000.jsonl", paths.RawPath(now))
	assert.Equal(t, "out/enriched_20260302_093000.jsonl", paths.EnrichedPath(now))
	assert.Equal(t, "out/table_20260302_093000.tsv", paths.TablePath(now))
}

func TestPathTemplatesEmptyMeansStdio(t *testing.T) {
	paths := PathsConfig{}
	now := time.Now()

	assert.Equal(t, "-", paths.RawPath(now))
	assert.Equal(t, "-", paths.EnrichedPath(now))
	assert.Equal(t, "-", paths.TablePath(now))
}

func TestValidateSchema(t *testing.T) {
	valid := []byte(`
limit:
  type: count
  count: 10
`)
	assert.NoError(t, ValidateSchema(valid))

	invalid := []byte(`
limit:
  type: count
  count: not-a-number
`)
	assert.Error(t, ValidateSchema(invalid))

	notYAML := []byte("\t{{{")
	assert.Error(t, ValidateSchema(notYAML))
}
