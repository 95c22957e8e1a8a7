// Package config provides configuration parsing and management for pagedb.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Parser errors.
var (
	ErrInvalidYAML     = errors.New("invalid YAML format")
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrInvalidNumber   = errors.New("invalid number format")
	ErrFileNotFound    = errors.New("configuration file not found")
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads configuration from a file path.
// It reads the file, substitutes environment variables, parses YAML,
// and applies defaults for missing values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data.
// It substitutes environment variables and applies defaults for missing values.
func ParseConfig(data []byte) (*Config, error) {
	data = substituteEnvVars(data)

	config := DefaultConfig()
	if err := parseYAML(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		content := string(match[2 : len(match)-1])

		if idx := strings.Index(content, ":-"); idx != -1 {
			varName := content[:idx]
			defaultVal := content[idx+2:]
			if val := os.Getenv(varName); val != "" {
				return []byte(val)
			}
			return []byte(defaultVal)
		}

		return []byte(os.Getenv(content))
	})
}

// yamlNode represents a parsed YAML node.
type yamlNode struct {
	key      string
	value    string
	line     int
	indent   int
	children []*yamlNode
}

// parseYAML parses YAML data into the config struct.
func parseYAML(data []byte, config *Config) error {
	lines := strings.Split(string(data), "\n")
	root := &yamlNode{indent: -1}

	if err := buildTree(lines, root); err != nil {
		return err
	}

	return applyConfig(root, config)
}

// buildTree builds a tree of mappings from YAML lines. Sequences are not
// part of the pagedb configuration and are rejected.
func buildTree(lines []string, root *yamlNode) error {
	stack := []*yamlNode{root}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := countIndent(line)

		node, err := parseLine(trimmed, indent)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		node.line = i + 1

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		parent := stack[len(stack)-1]
		parent.children = append(parent.children, node)
		stack = append(stack, node)
	}

	return nil
}

// countIndent counts the number of leading spaces.
func countIndent(line string) int {
	count := 0
	for _, ch := range line {
		if ch == ' ' {
			count++
		} else if ch == '\t' {
			count += 2 // Treat tab as 2 spaces
		} else {
			break
		}
	}
	return count
}

// parseLine parses a single YAML line.
func parseLine(line string, indent int) (*yamlNode, error) {
	if strings.HasPrefix(line, "- ") || line == "-" {
		return nil, fmt.Errorf("%w: list item", ErrUnexpectedToken)
	}

	colonIdx := strings.Index(line, ":")
	if colonIdx == -1 {
		return nil, ErrInvalidYAML
	}

	key := strings.TrimSpace(line[:colonIdx])
	if key == "" {
		return nil, ErrInvalidYAML
	}
	value := ""
	if colonIdx+1 < len(line) {
		value = stripComment(strings.TrimSpace(line[colonIdx+1:]))
	}

	return &yamlNode{
		key:    key,
		value:  unquote(value),
		indent: indent,
	}, nil
}

// stripComment drops a trailing " # comment" that follows the value.
func stripComment(s string) string {
	if s == "" {
		return s
	}
	start := 0
	if s[0] == '"' || s[0] == '\'' {
		if end := strings.IndexByte(s[1:], s[0]); end != -1 {
			start = end + 2
		}
	}
	if idx := strings.Index(s[start:], " #"); idx != -1 {
		return strings.TrimSpace(s[:start+idx])
	}
	return s
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// applyConfig applies parsed YAML nodes to the config struct.
func applyConfig(root *yamlNode, config *Config) error {
	for _, node := range root.children {
		switch node.key {
		case "storage":
			if err := applyStorageConfig(node, &config.Storage); err != nil {
				return err
			}
		case "tree":
			if err := applyTreeConfig(node, &config.Tree); err != nil {
				return err
			}
		case "logging":
			applyLogConfig(node, &config.Logging)
		}
	}
	return nil
}

// applyStorageConfig applies storage configuration.
func applyStorageConfig(node *yamlNode, config *StorageConfig) error {
	for _, child := range node.children {
		switch child.key {
		case "path":
			if child.value != "" {
				config.Path = child.value
			}
		case "initialPages":
			if err := parseInt(child, &config.InitialPages); err != nil {
				return err
			}
		case "syncOnWrite":
			config.SyncOnWrite = parseBool(child.value)
		case "cacheSize":
			if child.value != "" {
				config.CacheSize = child.value
			}
		case "readOnly":
			config.ReadOnly = parseBool(child.value)
		}
	}
	return nil
}

// applyTreeConfig applies B+Tree configuration.
func applyTreeConfig(node *yamlNode, config *TreeConfig) error {
	for _, child := range node.children {
		switch child.key {
		case "maxLeafPairs":
			if err := parseInt(child, &config.MaxLeafPairs); err != nil {
				return err
			}
		case "maxChildren":
			if err := parseInt(child, &config.MaxChildren); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyLogConfig applies logging configuration.
func applyLogConfig(node *yamlNode, config *LogConfig) {
	for _, child := range node.children {
		switch child.key {
		case "level":
			if child.value != "" {
				config.Level = child.value
			}
		case "format":
			if child.value != "" {
				config.Format = child.value
			}
		case "output":
			if child.value != "" {
				config.Output = child.value
			}
		}
	}
}

// parseInt stores an integer value; an empty value keeps the default.
func parseInt(node *yamlNode, dst *int) error {
	if node.value == "" {
		return nil
	}
	val, err := strconv.Atoi(node.value)
	if err != nil {
		return fmt.Errorf("line %d: %s: %w", node.line, node.key, ErrInvalidNumber)
	}
	*dst = val
	return nil
}

// parseBool parses a boolean string.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}
