package phase

import (
	"context"
	"sync"
	"time"

	"github.com/weilyn/cadence/internal/errors"
	"github.com/weilyn/cadence/internal/logging"
)

// Outcome classifies how a supervised phase ended. Idle and Timeout are
// deliberately distinct from Failed: an agent that went quiet and an agent
// that ran out of total budget point at different problems than one that
// exited non-zero.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeIdle    Outcome = "idle"
	OutcomeTimeout Outcome = "timeout"
)

// Success reports whether the outcome counts as a pass for the breaker.
func (o Outcome) Success() bool {
	return o == OutcomeOK
}

// PhaseResult is the supervised result of one phase execution.
type PhaseResult struct {
	Phase    string
	Outcome  Outcome
	ExitCode int
	Elapsed  time.Duration
	Tail     string
	Err      error
}

// Supervisor runs phases under two independent clocks: an idle timeout that
// resets on every output chunk, and a total timeout over the whole phase.
// The watcher goroutine it spawns is strictly supervisory: it cancels the
// phase context when a clock expires and never touches anything else.
type Supervisor struct {
	runner        Runner
	checkInterval time.Duration
	logger        *logging.Logger
}

// NewSupervisor wraps a runner with timeout supervision.
func NewSupervisor(runner Runner, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Supervisor{
		runner:        runner,
		checkInterval: time.Second,
		logger:        logger,
	}
}

// execState is the per-run clock state. It lives only for the duration of
// one Run call and is dropped when the phase exits.
type execState struct {
	mu         sync.Mutex
	start      time.Time
	lastOutput time.Time
	cause      Outcome
}

func (s *execState) touch() {
	s.mu.Lock()
	s.lastOutput = time.Now()
	s.mu.Unlock()
}

func (s *execState) expired(now time.Time, def *Def) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Total budget is checked first: a phase that is both idle and over
	// budget is reported as over budget.
	if def.TotalTimeout > 0 && now.Sub(s.start) > def.TotalTimeout {
		s.cause = OutcomeTimeout
		return OutcomeTimeout, true
	}
	if def.IdleTimeout > 0 && now.Sub(s.lastOutput) > def.IdleTimeout {
		s.cause = OutcomeIdle
		return OutcomeIdle, true
	}
	return "", false
}

func (s *execState) expiredCause() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Run executes one phase under supervision and classifies the result.
// The returned PhaseResult always has a non-empty Outcome; Err is set for
// every outcome other than OK.
func (s *Supervisor) Run(ctx context.Context, def Def, targetID string) *PhaseResult {
	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := time.Now()
	state := &execState{start: now, lastOutput: now}

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-phaseCtx.Done():
				return
			case t := <-ticker.C:
				if cause, ok := state.expired(t, &def); ok {
					s.logger.Warn("phase timed out",
						"phase", def.Name, "cause", string(cause),
						"elapsed", time.Since(state.start).String())
					cancel()
					return
				}
			}
		}
	}()

	result, runErr := s.runner.Run(phaseCtx, def, targetID, func(string) {
		state.touch()
	})

	cancel()
	<-watcherDone

	elapsed := time.Since(state.start)
	res := &PhaseResult{Phase: def.Name, Elapsed: elapsed}
	if result != nil {
		res.ExitCode = result.ExitCode
		res.Tail = result.Tail
	}

	// A timeout shows up as a canceled context; the recorded cause tells
	// idle and total apart.
	if cause := state.expiredCause(); cause != "" {
		res.Outcome = cause
		switch cause {
		case OutcomeIdle:
			res.Err = errors.NewPhaseError(def.Name, errors.ErrPhaseIdle).WithDuration(elapsed)
		default:
			res.Err = errors.NewPhaseError(def.Name, errors.ErrPhaseTimeout).WithDuration(elapsed)
		}
		return res
	}

	if ctx.Err() != nil {
		res.Outcome = OutcomeFailed
		res.Err = errors.NewPhaseError(def.Name, errors.ErrCanceled).WithDuration(elapsed)
		return res
	}

	if runErr != nil {
		res.Outcome = OutcomeFailed
		res.Err = errors.NewPhaseError(def.Name, runErr).WithDuration(elapsed)
		return res
	}

	if result.ExitCode != 0 {
		res.Outcome = OutcomeFailed
		res.Err = errors.NewPhaseError(def.Name, errors.ErrPhaseFailed).
			WithExitCode(result.ExitCode).WithDuration(elapsed)
		return res
	}

	res.Outcome = OutcomeOK
	return res
}
