package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/config"
	"github.com/Zeppelin-and-Pails/Victualiser/input/gate"
	"github.com/Zeppelin-and-Pails/Victualiser/metric"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
	"github.com/Zeppelin-and-Pails/Victualiser/source"
)

// runGather drives the stream gate against the configured provider until
// the gate signals Stop or the process is interrupted.
func runGather(
	ctx context.Context,
	cfg *config.Config,
	cliCfg *CLIConfig,
	registry *component.Registry,
	deps component.Dependencies,
	metricsRegistry *metric.MetricsRegistry,
) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinkPath := cliCfg.Output
	if sinkPath == "" {
		sinkPath = cfg.Paths.RawPath(time.Now())
	}

	gateCfg := gate.Config{
		Limit:    gate.LimitType(cfg.Limit.Type),
		Count:    cfg.Limit.Count,
		Duration: cfg.Limit.Duration,
		SinkPath: sinkPath,
	}
	rawCfg, err := json.Marshal(gateCfg)
	if err != nil {
		return fmt.Errorf("gate config marshal: %w", err)
	}

	comp, err := registry.CreateComponent("gate-main", "stream-gate", rawCfg, deps)
	if err != nil {
		return fmt.Errorf("gate creation: %w", err)
	}
	g, ok := comp.(*gate.Gate)
	if !ok {
		return fmt.Errorf("unexpected component type %T for stream-gate", comp)
	}

	if err := g.Initialize(); err != nil {
		return fmt.Errorf("gate initialization: %w", err)
	}
	defer func() { _ = g.Close() }()

	if cfg.Metrics.Addr != "" {
		metricsServer := metric.NewServer(cfg.Metrics.Addr, "/metrics", metricsRegistry)
		go func() {
			if err := metricsServer.Start(); err != nil {
				slog.Warn("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Stop() }()
		slog.Info("metrics endpoint up", "address", metricsServer.Address())
	}

	filter := buildFilter(cfg, cliCfg)
	src, err := buildSource(cfg, filter, deps, metricsRegistry)
	if err != nil {
		return err
	}

	if err := src.Stream(ctx, g); err != nil {
		if ctx.Err() != nil {
			slog.Info("gather interrupted", "accepted", g.Accepted())
			return nil
		}
		return fmt.Errorf("stream: %w", err)
	}

	if g.Err() != nil && !g.Quiet() {
		return fmt.Errorf("stream stopped (%s): %w", g.StopReason(), g.Err())
	}

	slog.Info("gather complete",
		"accepted", g.Accepted(),
		"reposts_skipped", g.Skipped(),
		"reason", g.StopReason(),
		"sink", sinkPath)
	return nil
}

// buildFilter merges the CLI keyword override with the configured filter.
// With no keywords and no bounding box, the gate falls back to the
// world-spanning box so providers still deliver events.
func buildFilter(cfg *config.Config, cliCfg *CLIConfig) source.Filter {
	track := cfg.Filter.Track
	if len(cliCfg.Filter) > 0 {
		track = cliCfg.Filter
	}

	locations := cfg.Filter.Locations
	if len(track) == 0 && len(locations) == 0 {
		locations = source.WorldLocations
	}

	return source.Filter{Track: track, Locations: locations}
}

// buildSource selects the provider adapter named by the configuration
func buildSource(
	cfg *config.Config,
	filter source.Filter,
	deps component.Dependencies,
	metricsRegistry *metric.MetricsRegistry,
) (source.Source, error) {
	switch cfg.Source.Provider {
	case "replay":
		replayPath := cfg.Source.ReplayFile
		if replayPath == "" {
			replayPath = sink.StdioPath
		}
		return source.NewReplayFromFile(replayPath, filter)
	case "websocket":
		ws := source.NewWebSocket(cfg.Source.URL, filter, deps.GetLogger())
		ws.OnReconnect(metricsRegistry.CoreMetrics().RecordSourceReconnect)
		ws.OnStatus(metricsRegistry.CoreMetrics().RecordSourceStatus)
		return ws, nil
	case "nats":
		ns := source.NewNATS(cfg.Source.URL, cfg.Source.Subject, filter, deps.GetLogger())
		ns.OnStatus(metricsRegistry.CoreMetrics().RecordSourceStatus)
		return ns, nil
	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Source.Provider)
	}
}
