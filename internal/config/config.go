// Package config provides configuration parsing and management for pagedb.
package config

// Config holds the complete pagedb configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Tree    TreeConfig    `yaml:"tree"`
	Logging LogConfig     `yaml:"logging"`
}

// StorageConfig holds store file configuration.
type StorageConfig struct {
	Path         string `yaml:"path"`
	InitialPages int    `yaml:"initialPages"`
	SyncOnWrite  bool   `yaml:"syncOnWrite"`
	CacheSize    string `yaml:"cacheSize"`
	ReadOnly     bool   `yaml:"readOnly"`
}

// TreeConfig holds B+Tree node capacities. Zero selects the page-fit maximum.
type TreeConfig struct {
	MaxLeafPairs int `yaml:"maxLeafPairs"`
	MaxChildren  int `yaml:"maxChildren"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}
