package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "breaker.window")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLoop()...)
	errors = append(errors, c.validateBreaker()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validatePhases()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLoop validates the LoopConfig
func (c *Config) validateLoop() []ValidationError {
	var errors []ValidationError

	if c.Loop.MaxIterations < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.max_iterations",
			Value:   c.Loop.MaxIterations,
			Message: "must be non-negative",
		})
	}

	if c.Loop.SyncEvery < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.sync_every",
			Value:   c.Loop.SyncEvery,
			Message: "must be non-negative",
		})
	}

	if c.Loop.RetryAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.retry_attempts",
			Value:   c.Loop.RetryAttempts,
			Message: "must be non-negative",
		})
	}

	if c.Loop.RetryBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "loop.retry_backoff_ms",
			Value:   c.Loop.RetryBackoffMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateBreaker validates the BreakerConfig.
// A breaker that can never trip is a misconfiguration, not a way to opt out,
// so both window and threshold must be positive.
func (c *Config) validateBreaker() []ValidationError {
	var errors []ValidationError

	if c.Breaker.Window <= 0 {
		errors = append(errors, ValidationError{
			Field:   "breaker.window",
			Value:   c.Breaker.Window,
			Message: "must be positive",
		})
	}

	if c.Breaker.Threshold <= 0 {
		errors = append(errors, ValidationError{
			Field:   "breaker.threshold",
			Value:   c.Breaker.Threshold,
			Message: "must be positive",
		})
	}

	if c.Breaker.Window > 0 && c.Breaker.Threshold > c.Breaker.Window {
		errors = append(errors, ValidationError{
			Field:   "breaker.threshold",
			Value:   c.Breaker.Threshold,
			Message: fmt.Sprintf("must not exceed breaker.window (%d)", c.Breaker.Window),
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if c.Store.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "store.command",
			Value:   c.Store.Command,
			Message: "must not be empty",
		})
	}

	if c.Store.SyncTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.sync_timeout_seconds",
			Value:   c.Store.SyncTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePhases validates the PhasesConfig
func (c *Config) validatePhases() []ValidationError {
	var errors []ValidationError

	if c.Phases.Runner == "" {
		errors = append(errors, ValidationError{
			Field:   "phases.runner",
			Value:   c.Phases.Runner,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
