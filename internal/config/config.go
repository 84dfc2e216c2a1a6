// Package config provides configuration for the annostore command-line
// tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the annostore tools.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// CacheConfig holds compiled-notes cache configuration.
type CacheConfig struct {
	// Dir is the cache directory
	Dir string `json:"dir" yaml:"dir"`

	// MaxSizeMB is the cache size cap in megabytes (default 256)
	MaxSizeMB int64 `json:"max_size_mb" yaml:"max_size_mb"`

	// Enabled controls whether the compiled-notes cache is used
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/annostore",
		Cache: CacheConfig{
			Dir:       "",
			MaxSizeMB: 256,
			Enabled:   true,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/annostore"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.DataDir, "cache")
	}
}

// MaxCacheBytes returns the cache size cap in bytes.
func (c *Config) MaxCacheBytes() int64 {
	return c.Cache.MaxSizeMB * 1024 * 1024
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Cache.MaxSizeMB <= 0 {
		return fmt.Errorf("cache.max_size_mb must be positive, got %d", c.Cache.MaxSizeMB)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ANNOSTORE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ANNOSTORE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ANNOSTORE_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("ANNOSTORE_CACHE_MAX_SIZE_MB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Cache.MaxSizeMB)
	}
	if v := os.Getenv("ANNOSTORE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.Cache.Dir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
