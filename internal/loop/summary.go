package loop

import (
	"time"

	"github.com/weilyn/cadence/internal/history"
)

// HaltReason explains why the loop stopped. Each reason maps to a distinct
// process exit code so callers can script against the outcome.
type HaltReason string

const (
	// HaltComplete means no ready work remained.
	HaltComplete HaltReason = "complete"
	// HaltBreaker means the circuit breaker opened.
	HaltBreaker HaltReason = "breaker"
	// HaltIterationLimit means the configured iteration cap was reached.
	HaltIterationLimit HaltReason = "iteration-limit"
	// HaltFatal means an unrecoverable error stopped the loop.
	HaltFatal HaltReason = "fatal"
)

// ExitCode maps the halt reason to the process exit code.
func (h HaltReason) ExitCode() int {
	switch h {
	case HaltComplete:
		return 0
	case HaltBreaker:
		return 2
	case HaltIterationLimit:
		return 3
	default:
		return 4
	}
}

// String returns a human-readable description of the halt reason.
func (h HaltReason) String() string {
	switch h {
	case HaltComplete:
		return "all ready work complete"
	case HaltBreaker:
		return "circuit breaker open: too many recent failures"
	case HaltIterationLimit:
		return "iteration limit reached"
	case HaltFatal:
		return "fatal error"
	default:
		return string(h)
	}
}

// RunSummary is the final account of a loop run.
type RunSummary struct {
	RunID      string     `json:"run_id"`
	Iterations int        `json:"iterations"`
	Halt       HaltReason `json:"halt"`

	// Detail carries the error text for fatal halts.
	Detail  string          `json:"detail,omitempty"`
	Totals  history.Summary `json:"totals"`
	Elapsed time.Duration   `json:"elapsed_ns"`
}
