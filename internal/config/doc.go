// Package config provides configuration parsing and management for pagedb.
//
// # Overview
//
// The config package loads, parses and validates pagedb settings from a
// small YAML subset (nested mappings of scalars). It supports:
//
//   - ${VAR} and ${VAR:-default} environment substitution
//   - Default values for all settings
//   - Configuration validation
//
// # Loading Configuration
//
//	cfg, err := config.LoadConfig("/etc/pagedb/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    log.Fatal(errs[0])
//	}
//
// # Example Configuration
//
//	storage:
//	  path: "${PAGEDB_PATH:-/var/lib/pagedb}"
//	  initialPages: 16
//	  syncOnWrite: false
//	  cacheSize: "1MB"    # 0 disables the page cache
//	  readOnly: false
//
//	tree:
//	  maxLeafPairs: 0     # 0 selects the page-fit maximum
//	  maxChildren: 0
//
//	logging:
//	  level: "info"
//	  format: "text"
//	  output: "stderr"
package config
