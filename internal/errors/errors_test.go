package errors

import (
	"fmt"
	"testing"
)

func TestStoreError_Format(t *testing.T) {
	err := NewStoreError("listing ready items", ErrStoreUnavailable).WithItemID("cd-12")

	want := "store error [item=cd-12]: listing ready items: work-item store unavailable"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStoreError_Classification(t *testing.T) {
	err := NewStoreError("sync", ErrSyncFailed)
	if !IsRetryable(err) {
		t.Error("fresh store error should be retryable")
	}
	if IsFatal(err) {
		t.Error("fresh store error should not be fatal")
	}

	exhausted := NewStoreError("sync", ErrSyncFailed).WithFatal()
	if IsRetryable(exhausted) {
		t.Error("exhausted store error should not be retryable")
	}
	if !IsFatal(exhausted) {
		t.Error("exhausted store error should be fatal")
	}
}

func TestStoreError_WrappedClassification(t *testing.T) {
	// Classification must survive fmt.Errorf wrapping.
	err := fmt.Errorf("iteration 3: %w", NewStoreError("show", ErrItemNotFound))
	if !IsRetryable(err) {
		t.Error("wrapped store error should still be retryable")
	}
	if !Is(err, ErrItemNotFound) {
		t.Error("wrapped store error should match its sentinel cause")
	}
}

func TestPhaseError_Sentinels(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"idle", ErrPhaseIdle},
		{"timeout", ErrPhaseTimeout},
		{"exit", ErrPhaseFailed},
	}

	for _, tt := range tests {
		err := NewPhaseError("execute", tt.cause).WithExitCode(1)
		if !IsPhaseFailure(err) {
			t.Errorf("%s: IsPhaseFailure = false, want true", tt.name)
		}
		if IsFatal(err) {
			t.Errorf("%s: IsFatal = true, want false", tt.name)
		}
		if !Is(err, tt.cause) {
			t.Errorf("%s: error should match sentinel %v", tt.name, tt.cause)
		}
	}
}

func TestConfigError_Fatal(t *testing.T) {
	err := NewConfigError("breaker threshold must be positive").
		WithField("breaker.threshold").
		WithValue(0)

	if !IsFatal(err) {
		t.Error("config errors must be fatal")
	}
	if IsRetryable(err) {
		t.Error("config errors must not be retryable")
	}
	if !Is(err, ErrInvalidConfig) {
		t.Error("config error should match ErrInvalidConfig")
	}

	want := "config error [field=breaker.threshold, value=0]: breaker threshold must be positive"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestClassification_NilAndPlain(t *testing.T) {
	if IsRetryable(nil) || IsFatal(nil) || IsPhaseFailure(nil) {
		t.Error("nil must classify as nothing")
	}
	plain := New("boom")
	if IsRetryable(plain) || IsFatal(plain) || IsPhaseFailure(plain) {
		t.Error("plain errors must classify as nothing")
	}
}
