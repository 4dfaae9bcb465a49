package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsGather(t *testing.T) {
	cfg, exit, err := parseFlags([]string{
		"gather", "-f", "coffee", "-filter", "tea", "-o", "raw.jsonl",
	})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, modeGather, cfg.Mode)
	assert.Equal(t, []string{"coffee", "tea"}, cfg.Filter)
	assert.Equal(t, "raw.jsonl", cfg.Output)
}

func TestParseFlagsTransform(t *testing.T) {
	cfg, exit, err := parseFlags([]string{
		"transform", "-i", "raw.jsonl", "-o", "enriched.jsonl",
	})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, modeTransform, cfg.Mode)
	assert.Equal(t, "raw.jsonl", cfg.Input)
	assert.Equal(t, "enriched.jsonl", cfg.Output)
}

func TestParseFlagsProjectFields(t *testing.T) {
	cfg, exit, err := parseFlags([]string{
		"project", "-i", "enriched.jsonl", "text", "language",
	})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, []string{"text", "language"}, cfg.Fields)
}

func TestParseFlagsProjectWithoutFields(t *testing.T) {
	cfg, exit, err := parseFlags([]string{"project", "-i", "enriched.jsonl"})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Empty(t, cfg.Fields)
}

func TestParseFlagsDiscoverFieldsAlias(t *testing.T) {
	cfg, exit, err := parseFlags([]string{"discover-fields", "-i", "enriched.jsonl"})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, modeFields, cfg.Mode)
	assert.Equal(t, "enriched.jsonl", cfg.Input)
}

func TestParseFlagsAggregateRequiresFields(t *testing.T) {
	_, exit, err := parseFlags([]string{"aggregate", "-i", "enriched.jsonl"})
	assert.True(t, exit)
	assert.Error(t, err)

	cfg, exit, err := parseFlags([]string{"aggregate", "-i", "enriched.jsonl", "language", "source"})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, []string{"language", "source"}, cfg.Fields)
}

func TestParseFlagsUnknownMode(t *testing.T) {
	_, exit, err := parseFlags([]string{"teleport"})
	assert.True(t, exit)
	assert.Error(t, err)
}

func TestParseFlagsNoMode(t *testing.T) {
	_, exit, err := parseFlags(nil)
	assert.True(t, exit)
	assert.Error(t, err)
}

func TestParseFlagsHelpAndVersion(t *testing.T) {
	_, exit, err := parseFlags([]string{"--help"})
	assert.True(t, exit)
	assert.NoError(t, err)

	_, exit, err = parseFlags([]string{"version"})
	assert.True(t, exit)
	assert.NoError(t, err)
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, exit, err := parseFlags([]string{"fields"})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.Validate)
}

func TestParseFlagsConfigEnvFallback(t *testing.T) {
	t.Setenv("VICTUALISER_CONFIG", "/etc/victualiser.yaml")

	cfg, exit, err := parseFlags([]string{"fields"})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "/etc/victualiser.yaml", cfg.ConfigPath)
}
