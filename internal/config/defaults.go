// Package config provides configuration parsing and management for pagedb.
package config

import "github.com/KilimcininKorOglu/pagedb/internal/storage"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:         "/var/lib/pagedb",
			InitialPages: storage.DefaultInitialPages,
			SyncOnWrite:  false,
			CacheSize:    "1MB",
			ReadOnly:     false,
		},
		Tree: TreeConfig{
			MaxLeafPairs: 0,
			MaxChildren:  0,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// CachePages converts the configured cache size into a page count.
// An invalid size yields zero, which disables the cache.
func (c *StorageConfig) CachePages() int {
	size, err := parseSize(c.CacheSize)
	if err != nil || size <= 0 {
		return 0
	}
	return int(size / storage.PageSize)
}
