package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/config"
	"github.com/Zeppelin-and-Pails/Victualiser/server"
	"github.com/Zeppelin-and-Pails/Victualiser/sink"
)

// newServer builds the serving stage and opens its enriched sink
func newServer(
	cfg *config.Config,
	cliCfg *CLIConfig,
	registry *component.Registry,
	deps component.Dependencies,
) (*server.Server, io.ReadCloser, error) {
	inputPath := cliCfg.Input
	if inputPath == "" {
		inputPath = sink.StdioPath
	}

	missingKey := server.MissingKeyPolicy(cfg.Serve.MissingKey)
	if missingKey == "" {
		missingKey = server.MissingKeyFail
	}

	serverCfg := server.Config{
		InputPath:  inputPath,
		MissingKey: missingKey,
	}
	rawCfg, err := json.Marshal(serverCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("server config marshal: %w", err)
	}

	comp, err := registry.CreateComponent("server-main", "server", rawCfg, deps)
	if err != nil {
		return nil, nil, fmt.Errorf("server creation: %w", err)
	}
	srv, ok := comp.(*server.Server)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected component type %T for server", comp)
	}

	reader, err := sink.Open(inputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("enriched sink: %w", err)
	}

	return srv, reader, nil
}

// runFields prints the sorted field names of the first enriched record
func runFields(
	cfg *config.Config,
	cliCfg *CLIConfig,
	registry *component.Registry,
	deps component.Dependencies,
) error {
	srv, reader, err := newServer(cfg, cliCfg, registry, deps)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	fields, err := srv.Fields(reader)
	if err != nil {
		return fmt.Errorf("fields: %w", err)
	}

	for _, field := range fields {
		fmt.Println(field)
	}
	return nil
}

// runProject writes the projected records as one TSV table
func runProject(
	cfg *config.Config,
	cliCfg *CLIConfig,
	registry *component.Registry,
	deps component.Dependencies,
) error {
	srv, reader, err := newServer(cfg, cliCfg, registry, deps)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	rows, err := srv.Project(reader, cliCfg.Fields)
	if err != nil {
		return fmt.Errorf("project: %w", err)
	}

	outputPath := cliCfg.Output
	if outputPath == "" {
		outputPath = cfg.Paths.TablePath(time.Now())
	}
	writer, closeWriter, err := openOutput(outputPath)
	if err != nil {
		return fmt.Errorf("table output: %w", err)
	}
	defer closeWriter()

	if err := srv.WriteTable(writer, rows, cliCfg.Fields); err != nil {
		return fmt.Errorf("project: %w", err)
	}

	slog.Info("projection complete", "rows", len(rows), "output", outputPath)
	return nil
}

// runAggregate emits the full aggregation tree as nested JSON
func runAggregate(
	cfg *config.Config,
	cliCfg *CLIConfig,
	registry *component.Registry,
	deps component.Dependencies,
) error {
	srv, reader, err := newServer(cfg, cliCfg, registry, deps)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	tree, err := srv.Aggregate(reader, cliCfg.Fields)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	encoded, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	outputPath := cliCfg.Output
	if outputPath == "" {
		outputPath = sink.StdioPath
	}
	writer, closeWriter, err := openOutput(outputPath)
	if err != nil {
		return fmt.Errorf("aggregate output: %w", err)
	}
	defer closeWriter()

	if _, err := writer.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("aggregate output: %w", err)
	}

	slog.Info("aggregation complete", "total", tree.Total(), "output", outputPath)
	return nil
}
