package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/KilimcininKorOglu/pagedb/internal/config"
	"github.com/KilimcininKorOglu/pagedb/internal/logging"
	"github.com/KilimcininKorOglu/pagedb/internal/storage/engine"
)

// storeFlags are shared by every command that opens a database.
type storeFlags struct {
	configFile *string
	path       *string
	logLevel   *string
	help       *bool
	helpLong   *bool

	logger logging.Logger // set by openDB, closed by closeDB
}

func addStoreFlags(fs *flag.FlagSet) *storeFlags {
	return &storeFlags{
		configFile: fs.String("config", "", "Path to configuration file"),
		path:       fs.String("path", "", "Database directory (overrides config)"),
		logLevel:   fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)"),
		help:       fs.Bool("h", false, "Show help message"),
		helpLong:   fs.Bool("help", false, "Show help message"),
	}
}

func (f *storeFlags) wantsHelp() bool {
	return *f.help || *f.helpLong
}

// loadConfig builds the effective configuration: file or defaults, then
// environment overrides, then flags.
func (f *storeFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *f.configFile != "" {
		var err error
		cfg, err = config.LoadConfig(*f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	applyEnvOverrides(cfg)

	if *f.path != "" {
		cfg.Storage.Path = *f.path
	}
	if *f.logLevel != "" {
		cfg.Logging.Level = *f.logLevel
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// openDB opens the configured database. Read-only commands never create a
// store.
func (f *storeFlags) openDB(readOnly bool) (*engine.DB, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	db, err := engine.Open(cfg.Storage.Path, engineOptions(cfg, readOnly, logger))
	if err != nil {
		logger.Close()
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no database at %s", cfg.Storage.Path)
		}
		return nil, err
	}
	f.logger = logger
	return db, nil
}

func engineOptions(cfg *config.Config, readOnly bool, logger logging.Logger) engine.Options {
	return engine.Options{
		InitialPages:      cfg.Storage.InitialPages,
		CreateIfNotExists: !readOnly,
		ReadOnly:          readOnly || cfg.Storage.ReadOnly,
		SyncOnWrite:       cfg.Storage.SyncOnWrite,
		CacheSize:         cfg.Storage.CachePages(),
		MaxLeafPairs:      cfg.Tree.MaxLeafPairs,
		MaxChildren:       cfg.Tree.MaxChildren,
		Logger:            logger,
	}
}

// closeDB closes db and its logger, and reports a failure unless the
// command already failed.
func (f *storeFlags) closeDB(db *engine.DB, code int) int {
	if err := db.Close(); err != nil {
		fmt.Fprintf(stderr, "Error closing database: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	if f.logger != nil {
		if err := f.logger.Close(); err != nil {
			fmt.Fprintf(stderr, "Error closing log output: %v\n", err)
			if code == 0 {
				code = 1
			}
		}
		f.logger = nil
	}
	return code
}
