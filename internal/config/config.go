// Package config loads the optional .shellrun YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up from the working directory upward.
const FileName = ".shellrun"

// Default values.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultHistory   = 16
	DefaultLogLevel  = "error"
	DefaultLogFormat = "console"
)

// Config holds the parsed .shellrun configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version    int       `yaml:"version"`
	RawTimeout string    `yaml:"timeout"`     // e.g. "30s", "2m"
	Shell      string    `yaml:"shell"`       // shell on shell-native hosts
	CacheProbe bool      `yaml:"cache_probe"` // remember a successful WSL probe
	RawHistory int       `yaml:"history"`     // runs kept in memory
	HistoryDir string    `yaml:"history_dir"` // where runs are written; temp dir if empty
	Log        LogConfig `yaml:"log"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// History returns the in-memory run history size or the default.
func (c *Config) History() int {
	if c.RawHistory > 0 {
		return c.RawHistory
	}
	return DefaultHistory
}

// LogLevel returns the configured level or the default.
func (c *Config) LogLevel() string {
	if c.Log.Level != "" {
		return c.Log.Level
	}
	return DefaultLogLevel
}

// LogFormat returns the configured format or the default.
func (c *Config) LogFormat() string {
	if c.Log.Format != "" {
		return c.Log.Format
	}
	return DefaultLogFormat
}

// Validate reports values that are present but unusable.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", c.RawTimeout)
		}
	}
	if c.RawHistory < 0 {
		return fmt.Errorf("history must not be negative, got %d", c.RawHistory)
	}
	return nil
}

// LoadResult holds the parsed config and where it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load looks for a .shellrun file in dir and each of its parents. If none
// exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := findConfig(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

var errNotFound = errors.New(FileName + " not found")

// findConfig walks upward from dir looking for FileName.
func findConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNotFound
		}
		dir = parent
	}
}
