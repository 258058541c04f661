package loop

import "testing"

func changeSet(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestDetectWorkedItem(t *testing.T) {
	tests := []struct {
		name    string
		changed []string
		target  string
		want    string
	}{
		{"no changes", nil, "cd-1", ""},
		{"single change wins", []string{"cd-9"}, "cd-1", "cd-9"},
		{"single change no target", []string{"cd-9"}, "", "cd-9"},
		// The explicit target wins even when a deeper ID also changed.
		{"target beats deeper change", []string{"cd-1", "cd-1.2"}, "cd-1", "cd-1"},
		{"target absent, deepest wins", []string{"cd-1", "cd-1.2"}, "cd-7", "cd-1.2"},
		{"no target, deepest wins", []string{"cd-1", "cd-1.2", "cd-1.2.3"}, "", "cd-1.2.3"},
		{"depth tie breaks lexicographically", []string{"cd-2.1", "cd-1.9"}, "", "cd-1.9"},
		{"root-only tie", []string{"cd-b", "cd-a"}, "", "cd-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectWorkedItem(changeSet(tt.changed...), tt.target)
			if got != tt.want {
				t.Errorf("DetectWorkedItem(%v, %q) = %q, want %q", tt.changed, tt.target, got, tt.want)
			}
		})
	}
}

func TestDetectWorkedItemDeterministic(t *testing.T) {
	// Map iteration order must not leak into the result.
	changed := changeSet("cd-3.1", "cd-2.2", "cd-5.9", "cd-1.4")
	first := DetectWorkedItem(changed, "")
	for i := 0; i < 50; i++ {
		if got := DetectWorkedItem(changed, ""); got != first {
			t.Fatalf("nondeterministic result: %q vs %q", got, first)
		}
	}
	if first != "cd-1.4" {
		t.Errorf("expected lexicographic winner cd-1.4, got %q", first)
	}
}

func TestHaltReasonExitCodes(t *testing.T) {
	tests := []struct {
		reason HaltReason
		code   int
	}{
		{HaltComplete, 0},
		{HaltBreaker, 2},
		{HaltIterationLimit, 3},
		{HaltFatal, 4},
	}
	for _, tt := range tests {
		if got := tt.reason.ExitCode(); got != tt.code {
			t.Errorf("%s.ExitCode() = %d, want %d", tt.reason, got, tt.code)
		}
	}
}
