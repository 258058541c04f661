// Package breaker implements the circuit breaker that halts the loop when
// too many recent iterations fail. It exists to stop an agent that keeps
// burning iterations without making progress.
package breaker

import "github.com/weilyn/cadence/internal/errors"

// Breaker tracks the pass/fail outcome of the most recent iterations in a
// fixed-size window. It is not safe for concurrent use; the loop records
// outcomes strictly between phases.
type Breaker struct {
	window    []bool // true = failure
	size      int
	threshold int
	next      int
	filled    int
}

// New creates a breaker over the given window size and failure threshold.
// Both must be positive and the threshold must fit the window: a breaker
// that can never open guards nothing, which is a configuration mistake
// rather than an opt-out.
func New(window, threshold int) (*Breaker, error) {
	if window <= 0 {
		return nil, errors.NewConfigError("breaker window must be positive").
			WithField("breaker.window").WithValue(window)
	}
	if threshold <= 0 {
		return nil, errors.NewConfigError("breaker threshold must be positive").
			WithField("breaker.threshold").WithValue(threshold)
	}
	if threshold > window {
		return nil, errors.NewConfigError("breaker threshold must not exceed window").
			WithField("breaker.threshold").WithValue(threshold)
	}
	return &Breaker{
		window:    make([]bool, window),
		size:      window,
		threshold: threshold,
	}, nil
}

// Record appends an iteration outcome, evicting the oldest once the window
// is full.
func (b *Breaker) Record(ok bool) {
	b.window[b.next] = !ok
	b.next = (b.next + 1) % b.size
	if b.filled < b.size {
		b.filled++
	}
}

// Open reports whether the breaker has tripped. The failure count is taken
// over the entire current window content, not just the newest entries, so a
// burst of early failures still counts until enough successes push it out.
func (b *Breaker) Open() bool {
	return b.Failures() >= b.threshold
}

// Failures returns the number of failures in the current window.
func (b *Breaker) Failures() int {
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return failures
}

// Recorded returns how many outcomes the window currently holds.
func (b *Breaker) Recorded() int {
	return b.filled
}
