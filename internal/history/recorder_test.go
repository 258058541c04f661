package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/weilyn/cadence/internal/logging"
)

func sampleRecord(iteration int, status IterationStatus) IterationRecord {
	return IterationRecord{
		RunID:     "f6b2c7ee-1111-2222-3333-444455556666",
		Iteration: iteration,
		Phases: []PhaseOutcome{
			{Phase: "prepare", Outcome: "ok", Elapsed: time.Second},
			{Phase: "execute", Outcome: "ok", Elapsed: 3 * time.Second},
		},
		WorkedItem: "cd-4.1",
		FollowUps:  1,
		Status:     status,
		Elapsed:    4 * time.Second,
		RecordedAt: time.Now().UTC(),
	}
}

func TestAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, logging.NopLogger())

	r.Append(sampleRecord(1, StatusSuccess))
	r.Append(sampleRecord(2, StatusFailure))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	read, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(read) != 2 {
		t.Fatalf("ReadAll returned %d records, want 2", len(read))
	}
	if read[0].Iteration != 1 || read[1].Iteration != 2 {
		t.Errorf("records out of order: %d, %d", read[0].Iteration, read[1].Iteration)
	}
	if read[1].Status != StatusFailure {
		t.Errorf("second record status = %s, want failure", read[1].Status)
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	r := NewRecorder("", logging.NopLogger())
	r.Append(sampleRecord(1, StatusSuccess))

	got := r.Records()
	got[0].Iteration = 99

	if r.Records()[0].Iteration != 1 {
		t.Error("mutating Records() result must not affect the recorder")
	}
}

func TestMemoryOnlyRecorder(t *testing.T) {
	r := NewRecorder("", logging.NopLogger())
	r.Append(sampleRecord(1, StatusSuccess))

	if r.Len() != 1 {
		t.Errorf("memory-only recorder should still accumulate, got %d", r.Len())
	}
}

func TestSummarize(t *testing.T) {
	r := NewRecorder("", logging.NopLogger())
	r.Append(sampleRecord(1, StatusSuccess))
	r.Append(sampleRecord(2, StatusSuccess))
	r.Append(sampleRecord(3, StatusFailure))

	s := r.Summarize()
	if s.Iterations != 3 || s.Successes != 2 || s.Failures != 1 {
		t.Errorf("Summarize = %+v", s)
	}
	if s.FollowUps != 3 {
		t.Errorf("FollowUps = %d, want 3", s.FollowUps)
	}
	if s.Elapsed != 12*time.Second {
		t.Errorf("Elapsed = %v, want 12s", s.Elapsed)
	}
}

func TestWriteJSON(t *testing.T) {
	r := NewRecorder("", logging.NopLogger())
	r.Append(sampleRecord(1, StatusSuccess))

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var report struct {
		Records []IterationRecord `json:"records"`
		Summary Summary           `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(report.Records) != 1 || report.Summary.Iterations != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestWriteJSONEmptyHistory(t *testing.T) {
	r := NewRecorder("", logging.NopLogger())

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"records": []`)) {
		t.Errorf("empty history should emit an empty array, got: %s", buf.String())
	}
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll(t.TempDir())
	if err != nil {
		t.Fatalf("ReadAll on missing file: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil records, got %v", records)
	}
}

func TestReadAllSkipsTornLine(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, logging.NopLogger())
	r.Append(sampleRecord(1, StatusSuccess))

	// Simulate a crash mid-append.
	f, err := os.OpenFile(filepath.Join(dir, historyFileName), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("opening history file: %v", err)
	}
	if _, err := f.WriteString(`{"run_id":"trunc`); err != nil {
		t.Fatalf("writing torn line: %v", err)
	}
	f.Close()

	records, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected torn line to be skipped, got %d records", len(records))
	}
}
