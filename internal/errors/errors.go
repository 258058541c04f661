// Package errors provides centralized error definitions and error handling
// utilities for the cadence codebase. It defines domain-specific errors,
// error constructors with context wrapping, and classification helpers that
// the loop uses to decide between retrying, recording a failure, and halting.
//
// # Error Classification
//
// Every low-level failure is classified at the point of the call into one of
// three buckets before it crosses into the orchestrator:
//
//   - Transient: a store or process call failed once and may succeed on
//     retry. Checked with IsRetryable.
//   - Phase failure: a phase subprocess exited non-zero, timed out, or went
//     idle. Recorded as a breaker outcome; the loop continues.
//   - Fatal: configuration errors, an unreachable store, or a malformed
//     snapshot. Checked with IsFatal; the loop halts immediately.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Store-related sentinel errors
var (
	// ErrItemNotFound indicates that a work item could not be found.
	ErrItemNotFound = New("work item not found")
	// ErrStoreUnavailable indicates the work-item store could not be reached.
	ErrStoreUnavailable = New("work-item store unavailable")
	// ErrMalformedItem indicates the store returned an item that failed validation.
	ErrMalformedItem = New("malformed work item")
	// ErrSyncFailed indicates an external-state synchronization failed.
	ErrSyncFailed = New("store sync failed")
)

// Phase-related sentinel errors
var (
	// ErrPhaseIdle indicates a phase produced no output for longer than its idle timeout.
	ErrPhaseIdle = New("phase idle timeout")
	// ErrPhaseTimeout indicates a phase exceeded its total timeout.
	ErrPhaseTimeout = New("phase total timeout")
	// ErrPhaseFailed indicates a phase subprocess exited non-zero.
	ErrPhaseFailed = New("phase failed")
)

// Loop-related sentinel errors
var (
	// ErrBreakerOpen indicates the circuit breaker halted the loop.
	ErrBreakerOpen = New("circuit breaker open")
	// ErrNoReadyWork indicates no ready work items remain.
	ErrNoReadyWork = New("no ready work")
	// ErrIterationLimit indicates the configured iteration cap was reached.
	ErrIterationLimit = New("iteration limit reached")
)

// General sentinel errors
var (
	// ErrCanceled indicates an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = New("invalid configuration")
)

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
	fatal     bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// StoreError represents a failure talking to the work-item store.
//
// Example:
//
//	err := errors.NewStoreError("listing ready items", cause).WithItemID("cd-12")
type StoreError struct {
	baseError
	Op     string
	ItemID string
}

// NewStoreError creates a new StoreError. Store errors default to retryable:
// the store is a separate process and most failures are transient.
func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:   op,
			cause:     cause,
			retryable: true,
		},
		Op: op,
	}
}

// WithItemID adds the work item identifier to the error context.
func (e *StoreError) WithItemID(id string) *StoreError {
	e.ItemID = id
	return e
}

// WithFatal marks the error as fatal, disabling retries.
// Used once the bounded retry budget is exhausted.
func (e *StoreError) WithFatal() *StoreError {
	e.fatal = true
	e.retryable = false
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.ItemID != "" {
		parts = append(parts, fmt.Sprintf("item=%s", e.ItemID))
	}

	prefix := "store error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("store error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PhaseError represents a failure during phase execution.
type PhaseError struct {
	baseError
	Phase    string
	ExitCode int
	Duration time.Duration
}

// NewPhaseError creates a new PhaseError. Phase errors are never retried in
// place; they feed the circuit breaker as failure outcomes.
func NewPhaseError(phase string, cause error) *PhaseError {
	return &PhaseError{
		baseError: baseError{
			message: "phase execution failed",
			cause:   cause,
		},
		Phase: phase,
	}
}

// WithExitCode records the subprocess exit code.
func (e *PhaseError) WithExitCode(code int) *PhaseError {
	e.ExitCode = code
	return e
}

// WithDuration records how long the phase ran before failing.
func (e *PhaseError) WithDuration(d time.Duration) *PhaseError {
	e.Duration = d
	return e
}

// Error returns the formatted error message.
func (e *PhaseError) Error() string {
	prefix := fmt.Sprintf("phase error [phase=%s]", e.Phase)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PhaseError) Is(target error) bool {
	if _, ok := target.(*PhaseError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigError represents invalid configuration. Config errors are always
// fatal: the loop refuses to start rather than guess at behavior.
type ConfigError struct {
	baseError
	Field string
	Value any
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message: message,
			cause:   ErrInvalidConfig,
			fatal:   true,
		},
	}
}

// WithField adds the offending config field to the error context.
func (e *ConfigError) WithField(field string) *ConfigError {
	e.Field = field
	return e
}

// WithValue adds the offending value to the error context.
func (e *ConfigError) WithValue(value any) *ConfigError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "config error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("config error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// classified is implemented by errors that carry their own classification.
type classified interface {
	error
	isRetryable() bool
	isFatal() bool
}

func (e *baseError) isRetryable() bool { return e.retryable }
func (e *baseError) isFatal() bool     { return e.fatal }

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    continue
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var c classified
	if As(err, &c) {
		return c.isRetryable()
	}
	return false
}

// IsFatal returns true if the error should halt the loop immediately rather
// than being recorded as an iteration failure.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var c classified
	if As(err, &c) {
		return c.isFatal()
	}

	return Is(err, ErrInvalidConfig) || Is(err, ErrMalformedItem)
}

// IsPhaseFailure returns true if the error is a phase-level failure that
// should feed the circuit breaker rather than halt the loop.
func IsPhaseFailure(err error) bool {
	if err == nil {
		return false
	}

	var phaseErr *PhaseError
	if As(err, &phaseErr) {
		return true
	}
	return Is(err, ErrPhaseIdle) || Is(err, ErrPhaseTimeout) || Is(err, ErrPhaseFailed)
}

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "capturing snapshot")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
