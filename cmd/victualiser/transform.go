package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/config"
	"github.com/Zeppelin-and-Pails/Victualiser/processor/enrich"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
)

// runTransform enriches every raw record from the input sink into the
// output sink, 1:1 and order-preserving.
func runTransform(
	ctx context.Context,
	cfg *config.Config,
	cliCfg *CLIConfig,
	registry *component.Registry,
	deps component.Dependencies,
) error {
	inputPath := cliCfg.Input
	if inputPath == "" {
		inputPath = sink.StdioPath
	}
	outputPath := cliCfg.Output
	if outputPath == "" {
		outputPath = cfg.Paths.EnrichedPath(time.Now())
	}

	enrichCfg := enrich.Config{
		StrictClient: cfg.StrictClient(),
		InputPath:    inputPath,
		OutputPath:   outputPath,
	}
	rawCfg, err := json.Marshal(enrichCfg)
	if err != nil {
		return fmt.Errorf("enricher config marshal: %w", err)
	}

	comp, err := registry.CreateComponent("enricher-main", "enricher", rawCfg, deps)
	if err != nil {
		return fmt.Errorf("enricher creation: %w", err)
	}
	enricher, ok := comp.(*enrich.Enricher)
	if !ok {
		return fmt.Errorf("unexpected component type %T for enricher", comp)
	}

	reader, err := sink.Open(inputPath)
	if err != nil {
		return fmt.Errorf("raw sink: %w", err)
	}
	defer func() { _ = reader.Close() }()

	writer, closeWriter, err := openOutput(outputPath)
	if err != nil {
		return fmt.Errorf("enriched sink: %w", err)
	}
	defer closeWriter()

	stats, err := enricher.Run(ctx, reader, writer)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	slog.Info("transform complete",
		"read", stats.Read,
		"enriched", stats.Enriched,
		"skipped", stats.Skipped,
		"input", inputPath,
		"output", outputPath)
	return nil
}

// openOutput opens a fresh output file, or stdout for "-"
func openOutput(path string) (io.Writer, func(), error) {
	if path == sink.StdioPath {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}
