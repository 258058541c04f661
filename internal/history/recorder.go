package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/weilyn/cadence/internal/logging"
)

const historyFileName = "history.jsonl"

// Recorder accumulates iteration records in memory and appends each one to
// a JSONL file under an exclusive file lock. File failures degrade the
// recorder to memory-only rather than stopping the loop.
type Recorder struct {
	mu      sync.Mutex
	records []IterationRecord
	dir     string
	lock    *FileLock
	logger  *logging.Logger
}

// NewRecorder creates a recorder persisting to {stateDir}/history.jsonl.
// An empty stateDir keeps records in memory only.
func NewRecorder(stateDir string, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Recorder{dir: stateDir, logger: logger}
	if stateDir != "" {
		r.lock = NewFileLock(stateDir)
	}
	return r
}

// Append adds a record to the history. The in-memory copy always succeeds;
// the file append is best-effort and logged on failure.
func (r *Recorder) Append(rec IterationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)

	if r.dir == "" {
		return
	}
	if err := r.persist(rec); err != nil {
		r.logger.Warn("failed to persist iteration record",
			"iteration", rec.Iteration, "error", err)
	}
}

// persist appends one record to the JSONL file under the file lock.
// The caller must hold r.mu.
func (r *Recorder) persist(rec IterationRecord) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	if err := r.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = r.lock.Unlock() }()

	f, err := os.OpenFile(filepath.Join(r.dir, historyFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return f.Sync()
}

// Records returns a copy of all records appended so far.
func (r *Recorder) Records() []IterationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]IterationRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records appended so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Summary aggregates the recorded iterations.
type Summary struct {
	Iterations int           `json:"iterations"`
	Successes  int           `json:"successes"`
	Failures   int           `json:"failures"`
	FollowUps  int           `json:"follow_ups"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Summarize computes totals over everything recorded so far.
func (r *Recorder) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Summary
	for i := range r.records {
		rec := &r.records[i]
		s.Iterations++
		switch rec.Status {
		case StatusSuccess:
			s.Successes++
		case StatusFailure:
			s.Failures++
		}
		s.FollowUps += rec.FollowUps
		s.Elapsed += rec.Elapsed
	}
	return s
}

// runReport is the JSON document WriteJSON emits.
type runReport struct {
	Records []IterationRecord `json:"records"`
	Summary Summary           `json:"summary"`
}

// WriteJSON emits all records plus a summary as one JSON document, for the
// structured output mode.
func (r *Recorder) WriteJSON(w io.Writer) error {
	report := runReport{
		Records: r.Records(),
		Summary: r.Summarize(),
	}
	if report.Records == nil {
		report.Records = []IterationRecord{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// ReadAll loads every record from the history file in stateDir. A missing
// file is an empty history, not an error.
func ReadAll(stateDir string) ([]IterationRecord, error) {
	f, err := os.Open(filepath.Join(stateDir, historyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []IterationRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec IterationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn final line from a crashed run is skipped, not fatal.
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
