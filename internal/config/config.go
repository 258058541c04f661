package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete cadence configuration
type Config struct {
	Loop    LoopConfig    `mapstructure:"loop"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Store   StoreConfig   `mapstructure:"store"`
	Phases  PhasesConfig  `mapstructure:"phases"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// LoopConfig controls the iteration loop
type LoopConfig struct {
	// MaxIterations caps the number of loop iterations before halting (0 = unlimited)
	MaxIterations int `mapstructure:"max_iterations"`
	// SyncEvery triggers a store sync every N iterations (default: 5, 0 = disabled)
	SyncEvery int `mapstructure:"sync_every"`
	// RetryAttempts is the number of retries for transient failures (default: 3)
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBackoffMs is the initial retry backoff in milliseconds, doubled per
	// attempt (default: 500)
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// BreakerConfig controls the circuit breaker that halts runaway loops
type BreakerConfig struct {
	// Window is the number of recent iteration results to track (default: 10)
	Window int `mapstructure:"window"`
	// Threshold is the failure count across the window that opens the
	// breaker (default: 5)
	Threshold int `mapstructure:"threshold"`
}

// StoreConfig controls access to the work-item store
type StoreConfig struct {
	// Command is the store CLI binary to invoke (default: "bd")
	Command string `mapstructure:"command"`
	// Database is the path to the store database file. Used to watch for
	// external modifications; empty disables the freshness watcher.
	Database string `mapstructure:"database"`
	// SyncTimeoutSeconds bounds each store sync invocation (default: 60)
	SyncTimeoutSeconds int `mapstructure:"sync_timeout_seconds"`
}

// PhasesConfig controls phase definitions
type PhasesConfig struct {
	// File is the path to a YAML file defining the phase sequence.
	// Empty uses the built-in prepare/execute/review/finalize sequence.
	File string `mapstructure:"file"`
	// Runner is the agent CLI binary each phase invokes (default: "claude")
	Runner string `mapstructure:"runner"`
}

// LoggingConfig controls run logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where cadence stores data
type PathsConfig struct {
	// StateDir is the directory for run logs and iteration history.
	// If empty, defaults to ".cadence" relative to the working directory.
	// Supports ~ for home directory expansion.
	StateDir string `mapstructure:"state_dir"`
}

// ResolveStateDir returns the resolved state directory path.
// If StateDir is empty, it returns the default path relative to baseDir.
// If StateDir starts with ~, it expands to the user's home directory.
// If StateDir is a relative path, it's resolved relative to baseDir.
func (p *PathsConfig) ResolveStateDir(baseDir string) string {
	if p.StateDir == "" {
		return filepath.Join(baseDir, ".cadence")
	}

	path := p.StateDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// SyncTimeout returns the store sync timeout as a time.Duration
func (s *StoreConfig) SyncTimeout() time.Duration {
	return time.Duration(s.SyncTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial retry backoff as a time.Duration
func (l *LoopConfig) RetryBackoff() time.Duration {
	return time.Duration(l.RetryBackoffMs) * time.Millisecond
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Loop: LoopConfig{
			MaxIterations:  0, // Unlimited by default; the breaker is the safety net
			SyncEvery:      5,
			RetryAttempts:  3,
			RetryBackoffMs: 500,
		},
		Breaker: BreakerConfig{
			Window:    10,
			Threshold: 5,
		},
		Store: StoreConfig{
			Command:            "bd",
			Database:           "", // Empty disables the freshness watcher
			SyncTimeoutSeconds: 60,
		},
		Phases: PhasesConfig{
			File:   "",
			Runner: "claude",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			StateDir: "", // Empty means use default: .cadence
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Loop defaults
	viper.SetDefault("loop.max_iterations", defaults.Loop.MaxIterations)
	viper.SetDefault("loop.sync_every", defaults.Loop.SyncEvery)
	viper.SetDefault("loop.retry_attempts", defaults.Loop.RetryAttempts)
	viper.SetDefault("loop.retry_backoff_ms", defaults.Loop.RetryBackoffMs)

	// Breaker defaults
	viper.SetDefault("breaker.window", defaults.Breaker.Window)
	viper.SetDefault("breaker.threshold", defaults.Breaker.Threshold)

	// Store defaults
	viper.SetDefault("store.command", defaults.Store.Command)
	viper.SetDefault("store.database", defaults.Store.Database)
	viper.SetDefault("store.sync_timeout_seconds", defaults.Store.SyncTimeoutSeconds)

	// Phases defaults
	viper.SetDefault("phases.file", defaults.Phases.File)
	viper.SetDefault("phases.runner", defaults.Phases.Runner)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cadence")
	}
	// Fall back to ~/.config/cadence
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cadence"
	}
	return filepath.Join(home, ".config", "cadence")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
