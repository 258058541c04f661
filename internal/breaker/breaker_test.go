package breaker

import (
	"testing"

	"github.com/weilyn/cadence/internal/errors"
)

// record feeds a sequence of outcomes where 'F' is a failure and 'S' a success.
func record(b *Breaker, seq string) {
	for _, c := range seq {
		b.Record(c == 'S')
	}
}

func TestOpenCountsFullWindow(t *testing.T) {
	tests := []struct {
		name     string
		seq      string
		wantOpen bool
	}{
		// A success in the middle does not reset the count: failures on
		// both sides of it still sum across the window.
		{"failures split by success", "FFFFFSFFFF", true},
		{"old failures still count", "FFFFFSSSSS", true},
		{"below threshold", "FFFFSSSSSS", false},
		{"exactly at threshold", "FFFFFSSSSS", true},
		{"all successes", "SSSSSSSSSS", false},
		{"partial window below threshold", "FFF", false},
		{"partial window at threshold", "FFFFF", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(10, 5)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			record(b, tt.seq)
			if got := b.Open(); got != tt.wantOpen {
				t.Errorf("after %q: Open() = %v, want %v (failures=%d)",
					tt.seq, got, tt.wantOpen, b.Failures())
			}
		})
	}
}

func TestEvictionClosesBreaker(t *testing.T) {
	b, err := New(10, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	record(b, "FFFFF")
	if !b.Open() {
		t.Fatal("expected breaker open after 5 failures")
	}

	// Ten successes push every failure out of the window.
	record(b, "SSSSSSSSSS")
	if b.Open() {
		t.Errorf("expected breaker closed after eviction, failures=%d", b.Failures())
	}
	if b.Failures() != 0 {
		t.Errorf("expected 0 failures after full eviction, got %d", b.Failures())
	}
}

func TestRecordedSaturatesAtWindow(t *testing.T) {
	b, err := New(3, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	record(b, "SS")
	if got := b.Recorded(); got != 2 {
		t.Errorf("Recorded() = %d, want 2", got)
	}
	record(b, "SSSS")
	if got := b.Recorded(); got != 3 {
		t.Errorf("Recorded() = %d, want 3", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name      string
		window    int
		threshold int
	}{
		{"zero window", 0, 5},
		{"negative window", -1, 5},
		{"zero threshold", 10, 0},
		{"negative threshold", 10, -2},
		{"threshold exceeds window", 5, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.window, tt.threshold)
			if err == nil {
				t.Fatal("expected config error")
			}
			if !errors.Is(err, errors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !errors.IsFatal(err) {
				t.Error("config errors must be fatal")
			}
		})
	}
}
