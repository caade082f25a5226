// Package config loads sqlitebook configuration from defaults, an optional
// YAML file, SQLITEBOOK_* environment variables and command line overrides,
// in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "SQLITEBOOK_"

// Store backends.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Config is the full configuration.
type Config struct {
	Store  StoreConfig  `koanf:"store"`
	Log    LogConfig    `koanf:"log"`
	Output OutputConfig `koanf:"output"`
}

// StoreConfig selects and tunes the snapshot backing store.
type StoreConfig struct {
	Backend    string        `koanf:"backend"`
	Dir        string        `koanf:"dir"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OutputConfig configures command output.
type OutputConfig struct {
	Format string `koanf:"format"`
}

// DefaultDir returns the default store directory.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sqlitebook")
	}
	return ".sqlitebook"
}

func defaults() map[string]any {
	return map[string]any{
		"store.backend":     BackendBadger,
		"store.dir":         DefaultDir(),
		"store.sync_writes": true,
		"store.gc_interval": "10m",
		"log.level":         "warn",
		"log.format":        "text",
		"output.format":     FormatTable,
	}
}

// mapProvider loads a flat, dot-delimited key map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(maps.Copy(m), "."), nil
}

// envKey maps SQLITEBOOK_STORE_SYNC_WRITES to store.sync_writes: the first
// underscore separates the section from the key.
func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.Replace(name, "_", ".", 1)
}

// Load reads the configuration. path may be empty; overrides holds
// dot-delimited keys set on the command line.
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}
	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return nil, fmt.Errorf("config: load overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated values and required fields.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBadger:
		if c.Store.Dir == "" {
			return fmt.Errorf("config: store.dir is required for the %s backend", BackendBadger)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.GCInterval < 0 {
		return fmt.Errorf("config: store.gc_interval must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	switch c.Output.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("config: unknown output.format %q", c.Output.Format)
	}
	return nil
}
