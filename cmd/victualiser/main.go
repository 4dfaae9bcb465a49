// Package main implements the entry point for the Victualiser pipeline.
// Victualiser gathers a live social-media event stream, enriches the
// surviving records, and serves the accumulated enriched records for
// downstream analysis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/google/uuid"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/componentregistry"
	"github.com/Zeppelin-and-Pails/Victualiser/config"
	"github.com/Zeppelin-and-Pails/Victualiser/metric"
)

// Build information constants
const (
	Version = "1.0.0"
	appName = "victualiser"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("run failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, shouldExit, err := parseFlags(args)
	if shouldExit || err != nil {
		return err
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	logger = logger.With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	metricsRegistry := metric.NewMetricsRegistry()

	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return fmt.Errorf("component registration: %w", err)
	}

	deps := component.Dependencies{
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	ctx := context.Background()

	switch cliCfg.Mode {
	case modeGather:
		return runGather(ctx, cfg, cliCfg, registry, deps, metricsRegistry)
	case modeTransform:
		return runTransform(ctx, cfg, cliCfg, registry, deps)
	case modeFields:
		return runFields(cfg, cliCfg, registry, deps)
	case modeProject:
		return runProject(cfg, cliCfg, registry, deps)
	case modeAggregate:
		return runAggregate(cfg, cliCfg, registry, deps)
	default:
		return fmt.Errorf("unknown mode %q", cliCfg.Mode)
	}
}

// loadConfiguration loads the config file or falls back to defaults
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	if cliCfg.ConfigPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	slog.Info("configuration loaded", "path", cliCfg.ConfigPath)
	return cfg, nil
}
