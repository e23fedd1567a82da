// Package config loads leapquery configuration.
//
// Values are layered with koanf: built-in defaults, then leapquery.yaml,
// then LEAPQUERY_* environment variables, then command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/executor"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leapquery.yaml"
	ConfigFileNameAlt = "leapquery.yml"
)

// Default configuration values.
const (
	DefaultDialect    = "postgres"
	DefaultLogLevel   = "warn"
	DefaultOutput     = "auto" // TTY=text, otherwise markdown
	DefaultStateFile  = ".leapquery/history.db"
	DefaultMaxEntries = 1024
)

// Config holds all leapquery configuration.
type Config struct {
	Dialect   string           `koanf:"dialect"`
	LogLevel  string           `koanf:"log_level"`
	Verbose   bool             `koanf:"verbose"`
	Output    string           `koanf:"output"`
	Mappings  string           `koanf:"mappings"`
	StatePath string           `koanf:"state_path"`
	History   bool             `koanf:"history"`
	Cache     CacheConfig      `koanf:"cache"`
	Optimizer OptimizerConfig  `koanf:"optimizer"`
	Target    *executor.Config `koanf:"target"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// CacheConfig controls the plan cache.
type CacheConfig struct {
	Enabled    bool `koanf:"enabled"`
	MaxEntries int  `koanf:"max_entries"`
}

// OptimizerConfig controls the rewrite pipeline.
type OptimizerConfig struct {
	// MaxIterations bounds the fixed-point loop; zero uses the optimizer default.
	MaxIterations int `koanf:"max_iterations"`
}

// Defaults returns the built-in configuration as koanf keys.
func Defaults() map[string]any {
	return map[string]any{
		"dialect":                  DefaultDialect,
		"log_level":                DefaultLogLevel,
		"verbose":                  false,
		"output":                   DefaultOutput,
		"state_path":               DefaultStateFile,
		"history":                  true,
		"cache.enabled":            true,
		"cache.max_entries":        DefaultMaxEntries,
		"optimizer.max_iterations": 0,
	}
}

var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks values the loader cannot type-check. Dialect and target
// names are checked against their registries when they are used.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	valid := false
	for _, m := range outputModes {
		if strings.EqualFold(c.Output, m) {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid output %q\nHint: use one of %s", c.Output, strings.Join(outputModes, ", "))
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries)
	}
	if c.Optimizer.MaxIterations < 0 {
		return fmt.Errorf("optimizer.max_iterations must not be negative, got %d", c.Optimizer.MaxIterations)
	}
	return nil
}

// Level returns the configured log level. Verbose forces debug.
func (c *Config) Level() (slog.Level, error) {
	if c.Verbose {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
