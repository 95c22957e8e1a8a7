package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"empty path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"negative initial pages", func(c *Config) { c.Storage.InitialPages = -1 }, "storage.initialPages"},
		{"bad cache size", func(c *Config) { c.Storage.CacheSize = "lots" }, "storage.cacheSize"},
		{"cache below one page", func(c *Config) { c.Storage.CacheSize = "100B" }, "storage.cacheSize"},
		{"leaf capacity too small", func(c *Config) { c.Tree.MaxLeafPairs = 1 }, "tree.maxLeafPairs"},
		{"leaf capacity too large", func(c *Config) { c.Tree.MaxLeafPairs = 13 }, "tree.maxLeafPairs"},
		{"internal capacity too small", func(c *Config) { c.Tree.MaxChildren = 2 }, "tree.maxChildren"},
		{"internal capacity too large", func(c *Config) { c.Tree.MaxChildren = 58 }, "tree.maxChildren"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative log file", func(c *Config) { c.Logging.Output = "pagedb.log" }, "logging.output"},
		{"log dir missing", func(c *Config) { c.Logging.Output = "/nonexistent/dir/pagedb.log" }, "logging.output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			errs := ValidateConfig(config)
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
			}
			var verr ValidationError
			if !errors.As(errs[0], &verr) {
				t.Fatalf("expected ValidationError, got %T", errs[0])
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestValidateConfigAcceptsBounds(t *testing.T) {
	config := DefaultConfig()
	config.Storage.CacheSize = "0"
	config.Tree.MaxLeafPairs = 2
	config.Tree.MaxChildren = 57
	config.Logging.Output = filepath.Join(t.TempDir(), "pagedb.log")

	if errs := ValidateConfig(config); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"4096", 4096, false},
		{"512B", 512, false},
		{"256KB", 256 << 10, false},
		{"1MB", 1 << 20, false},
		{"2gb", 2 << 30, false},
		{"1TB", 1 << 40, false},
		{"MB", 0, true},
		{"-1KB", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("parseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCachePages(t *testing.T) {
	tests := []struct {
		size     string
		expected int
	}{
		{"1MB", 256},
		{"4096", 1},
		{"6KB", 1},
		{"0", 0},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		config := StorageConfig{CacheSize: tt.size}
		if got := config.CachePages(); got != tt.expected {
			t.Errorf("CachePages(%q) = %d, want %d", tt.size, got, tt.expected)
		}
	}
}
