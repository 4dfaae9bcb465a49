package main

import (
	"flag"
	"fmt"
	"os"
)

// Pipeline modes, one per subcommand
const (
	modeGather    = "gather"
	modeTransform = "transform"
	modeFields    = "fields"
	modeProject   = "project"
	modeAggregate = "aggregate"

	// Long-form alias for the fields mode
	modeDiscoverFields = "discover-fields"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Mode       string
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Validate   bool

	Filter []string // gather: keyword filter override
	Input  string   // transform/fields/project/aggregate: input sink override
	Output string   // gather/transform/project/aggregate: output override
	Fields []string // project/aggregate: ordered field list
}

// parseFlags parses the subcommand and its flags. The bool result
// reports that the process should exit without running a mode.
func parseFlags(args []string) (*CLIConfig, bool, error) {
	if len(args) == 0 {
		printUsage()
		return nil, true, fmt.Errorf("a mode is required")
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return nil, true, nil
	case "-v", "--version", "version":
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	mode := args[0]
	if mode == modeDiscoverFields {
		mode = modeFields
	}
	cfg := &CLIConfig{Mode: mode}

	flags := flag.NewFlagSet(cfg.Mode, flag.ContinueOnError)
	flags.StringVar(&cfg.ConfigPath, "config",
		getEnv("VICTUALISER_CONFIG", ""),
		"Path to configuration file (env: VICTUALISER_CONFIG)")
	flags.StringVar(&cfg.ConfigPath, "c",
		getEnv("VICTUALISER_CONFIG", ""),
		"Path to configuration file (shorthand)")
	flags.StringVar(&cfg.LogLevel, "log-level",
		getEnv("VICTUALISER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: VICTUALISER_LOG_LEVEL)")
	flags.StringVar(&cfg.LogFormat, "log-format",
		getEnv("VICTUALISER_LOG_FORMAT", "text"),
		"Log format: json, text (env: VICTUALISER_LOG_FORMAT)")
	flags.BoolVar(&cfg.Validate, "validate", false,
		"Validate the configuration and exit")

	var filter stringList
	switch cfg.Mode {
	case modeGather:
		flags.Var(&filter, "f", "Keyword to filter the stream on (repeatable)")
		flags.Var(&filter, "filter", "Keyword to filter the stream on (repeatable)")
		flags.StringVar(&cfg.Output, "o", "", "Raw sink path (- for stdout)")
	case modeTransform:
		flags.StringVar(&cfg.Input, "i", "", "Raw sink path to read (- for stdin)")
		flags.StringVar(&cfg.Output, "o", "", "Enriched sink path (- for stdout)")
	case modeFields:
		flags.StringVar(&cfg.Input, "i", "", "Enriched sink path to read (- for stdin)")
	case modeProject, modeAggregate:
		flags.StringVar(&cfg.Input, "i", "", "Enriched sink path to read (- for stdin)")
		flags.StringVar(&cfg.Output, "o", "", "Result output path (- for stdout)")
	default:
		printUsage()
		return nil, true, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if err := flags.Parse(args[1:]); err != nil {
		return nil, true, err
	}

	cfg.Filter = filter
	cfg.Fields = flags.Args()

	if cfg.Mode == modeAggregate && len(cfg.Fields) == 0 {
		return nil, true, fmt.Errorf("aggregate requires at least one field name")
	}

	return cfg, false, nil
}

// stringList collects repeated flag values
type stringList []string

func (s *stringList) String() string {
	return fmt.Sprintf("%v", []string(*s))
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <mode> [flags] [fields...]

Modes:
  gather      Consume the upstream stream and persist raw events
  transform   Enrich raw events into the enrichment schema
  fields      Discover queryable field names from the enriched sink
              (alias: discover-fields)
  project     Project enriched records into a TSV table
  aggregate   Count records grouped by an ordered field list

Examples:
  %s gather -f "coffee" -f "tea" -o data/raw.jsonl
  %s transform -i data/raw.jsonl -o data/enriched.jsonl
  %s fields -i data/enriched.jsonl
  %s project -i data/enriched.jsonl -o table.tsv text language source
  %s aggregate -i data/enriched.jsonl language source

Run "%s <mode> -h" for mode flags.
`, appName, appName, appName, appName, appName, appName, appName)
}
