// Package history records what every loop iteration did. The log is
// append-only: iterations are never rewritten after the fact, so the file
// is a faithful account of the run even after a crash.
package history

import "time"

// IterationStatus summarizes an iteration as a whole.
type IterationStatus string

const (
	// StatusSuccess means every phase completed OK.
	StatusSuccess IterationStatus = "success"
	// StatusFailure means at least one phase failed, idled, or timed out.
	StatusFailure IterationStatus = "failure"
	// StatusHalted means the loop stopped during this iteration before the
	// phase sequence could finish for an external reason.
	StatusHalted IterationStatus = "halted"
)

// PhaseOutcome is the recorded result of one phase within an iteration.
type PhaseOutcome struct {
	Phase    string        `json:"phase"`
	Outcome  string        `json:"outcome"`
	ExitCode int           `json:"exit_code"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// IterationRecord is one appended entry in the run history.
type IterationRecord struct {
	RunID     string         `json:"run_id"`
	Iteration int            `json:"iteration"`
	Phases    []PhaseOutcome `json:"phases,omitempty"`

	// WorkedItem is the item attribution resolved for this iteration;
	// empty when nothing changed or nothing could be attributed.
	WorkedItem string `json:"worked_item,omitempty"`
	// Epic is the nearest enclosing epic of the worked item, if any.
	Epic string `json:"epic,omitempty"`
	// FollowUps counts items that appeared in the store during the
	// iteration.
	FollowUps int `json:"follow_ups"`
	// Retries counts transient store retries spent this iteration.
	Retries int `json:"retries"`

	Status     IterationStatus `json:"status"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	RecordedAt time.Time       `json:"recorded_at"`
}
