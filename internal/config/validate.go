// Package config provides configuration parsing and management for pagedb.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KilimcininKorOglu/pagedb/internal/storage"
	"github.com/KilimcininKorOglu/pagedb/internal/storage/btree"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateTreeConfig(&config.Tree)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)

	return errs
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	if config.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "database path is required",
		})
	}

	if config.InitialPages < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.initialPages",
			Message: "must be non-negative",
		})
	}

	if config.CacheSize != "" {
		size, err := parseSize(config.CacheSize)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Field:   "storage.cacheSize",
				Message: err.Error(),
			})
		case size != 0 && size < storage.PageSize:
			errs = append(errs, ValidationError{
				Field:   "storage.cacheSize",
				Message: fmt.Sprintf("must be 0 or at least one page (%d bytes)", storage.PageSize),
			})
		}
	}

	return errs
}

// validateTreeConfig validates node capacities against what fits in a page.
func validateTreeConfig(config *TreeConfig) []error {
	var errs []error

	if config.MaxLeafPairs != 0 && (config.MaxLeafPairs < 2 || config.MaxLeafPairs > btree.MaxLeafPairs) {
		errs = append(errs, ValidationError{
			Field:   "tree.maxLeafPairs",
			Message: fmt.Sprintf("must be 0 or between 2 and %d", btree.MaxLeafPairs),
		})
	}

	if config.MaxChildren != 0 && (config.MaxChildren < 3 || config.MaxChildren > btree.MaxInternalChildren) {
		errs = append(errs, ValidationError{
			Field:   "tree.maxChildren",
			Message: fmt.Sprintf("must be 0 or between 3 and %d", btree.MaxInternalChildren),
		})
	}

	return errs
}

// validateLogConfig validates logging configuration.
func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

// sizeSuffixes is ordered so that "B" is tried after the longer suffixes.
var sizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseSize parses a size string like "256KB" or "1MB".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}

	mult := int64(1)
	for _, sz := range sizeSuffixes {
		if strings.HasSuffix(s, sz.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sz.suffix))
			mult = sz.mult
			break
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid size format: %s", s)
	}
	return num * mult, nil
}
