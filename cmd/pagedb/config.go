package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/KilimcininKorOglu/pagedb/internal/config"
)

// configCmd handles the config command.
func configCmd(args []string) int {
	if len(args) == 0 {
		printConfigUsage(stdout)
		return 0
	}

	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return configValidateCmd(args[1:])
	case "init":
		return configInitCmd(args[1:])
	case "show":
		return configShowCmd(args[1:])
	default:
		fmt.Fprintf(stderr, "Unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, "Run 'pagedb config help' for usage.")
		return 1
	}
}

// configValidateCmd handles the config validate subcommand.
func configValidateCmd(args []string) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Fprint(stdout, `Validate configuration file

Usage:
  pagedb config validate [options]

Options:
  -config string
        Path to configuration file (required)
`)
		return 0
	}

	if *configFile == "" {
		fmt.Fprintln(stderr, "Error: -config is required")
		return 1
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	errs := config.ValidateConfig(cfg)
	if len(errs) > 0 {
		fmt.Fprintln(stderr, "Configuration errors:")
		for _, e := range errs {
			fmt.Fprintf(stderr, "  - %s\n", e)
		}
		return 1
	}

	fmt.Fprintln(stdout, "Configuration is valid")
	return 0
}

// configInitCmd handles the config init subcommand.
func configInitCmd(args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Fprint(stdout, `Generate default configuration

Usage:
  pagedb config init

Outputs default configuration to stdout in YAML format.
`)
		return 0
	}

	fmt.Fprint(stdout, marshalConfigToYAML(config.DefaultConfig()))
	return 0
}

// configShowCmd handles the config show subcommand.
func configShowCmd(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	format := fs.String("format", "yaml", "Output format (yaml, json)")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Fprint(stdout, `Show effective configuration

Usage:
  pagedb config show [options]

Options:
  -config string
        Path to configuration file
  -format string
        Output format: yaml, json (default "yaml")
`)
		return 0
	}

	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return 1
		}
	} else {
		cfg = config.DefaultConfig()
	}

	applyEnvOverrides(cfg)

	switch strings.ToLower(*format) {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Failed to marshal config: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(data))
	default:
		fmt.Fprint(stdout, marshalConfigToYAML(cfg))
	}

	return 0
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern PAGEDB_<SECTION>_<KEY>.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("PAGEDB_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PAGEDB_STORAGE_CACHE_SIZE"); v != "" {
		cfg.Storage.CacheSize = v
	}

	if v := os.Getenv("PAGEDB_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PAGEDB_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PAGEDB_LOGGING_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
}

// marshalConfigToYAML converts a Config to the YAML subset read by the
// config package.
func marshalConfigToYAML(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString("# pagedb configuration\n")
	sb.WriteString("# Generated by: pagedb config init\n\n")

	sb.WriteString("storage:\n")
	sb.WriteString(fmt.Sprintf("  path: %q\n", cfg.Storage.Path))
	sb.WriteString(fmt.Sprintf("  initialPages: %d\n", cfg.Storage.InitialPages))
	sb.WriteString(fmt.Sprintf("  syncOnWrite: %t\n", cfg.Storage.SyncOnWrite))
	sb.WriteString(fmt.Sprintf("  cacheSize: %q\n", cfg.Storage.CacheSize))
	sb.WriteString(fmt.Sprintf("  readOnly: %t\n", cfg.Storage.ReadOnly))
	sb.WriteString("\n")

	sb.WriteString("tree:\n")
	sb.WriteString(fmt.Sprintf("  maxLeafPairs: %d\n", cfg.Tree.MaxLeafPairs))
	sb.WriteString(fmt.Sprintf("  maxChildren: %d\n", cfg.Tree.MaxChildren))
	sb.WriteString("\n")

	sb.WriteString("logging:\n")
	sb.WriteString(fmt.Sprintf("  level: %q\n", cfg.Logging.Level))
	sb.WriteString(fmt.Sprintf("  format: %q\n", cfg.Logging.Format))
	sb.WriteString(fmt.Sprintf("  output: %q\n", cfg.Logging.Output))

	return sb.String()
}
