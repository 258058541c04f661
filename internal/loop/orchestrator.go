package loop

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/weilyn/cadence/internal/breaker"
	"github.com/weilyn/cadence/internal/errors"
	"github.com/weilyn/cadence/internal/history"
	"github.com/weilyn/cadence/internal/logging"
	"github.com/weilyn/cadence/internal/phase"
	"github.com/weilyn/cadence/internal/snapshot"
	"github.com/weilyn/cadence/internal/store"
)

// Store is the slice of the store client the loop needs.
type Store interface {
	snapshot.Lister
	Show(ctx context.Context, id string) (*store.WorkItem, error)
	Sync(ctx context.Context) error
	RetryCount() int64
}

// Freshness reports whether the store database changed underneath us.
// The fsnotify watcher implements it; a nil Freshness disables off-schedule
// syncs.
type Freshness interface {
	Stale() bool
	Reset()
}

// PhaseRunner executes one supervised phase. The phase.Supervisor satisfies
// it; tests substitute scripted outcomes.
type PhaseRunner interface {
	Run(ctx context.Context, def phase.Def, targetID string) *phase.PhaseResult
}

// state tracks where the loop is inside an iteration. Transitions are
// logged; nothing outside this package depends on them.
type state int

const (
	stateIdle state = iota
	stateSelecting
	stateExecuting
	stateReconciling
	stateHalted
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSelecting:
		return "selecting"
	case stateExecuting:
		return "executing"
	case stateReconciling:
		return "reconciling"
	case stateHalted:
		return "halted"
	}
	return "unknown"
}

// Options configures an Orchestrator.
type Options struct {
	Store     Store
	Freshness Freshness // optional
	Runner    PhaseRunner
	Recorder  *history.Recorder
	Phases    []phase.Def
	Logger    *logging.Logger

	// MaxIterations caps the run; 0 means unlimited.
	MaxIterations int
	// SyncEvery triggers a store sync every Nth iteration; 0 disables
	// periodic syncs.
	SyncEvery int
	// SyncTimeout bounds each sync invocation.
	SyncTimeout time.Duration

	BreakerWindow    int
	BreakerThreshold int
}

// Orchestrator owns the iteration loop. It runs single-threaded: phases
// execute one at a time and the breaker and recorder are only touched
// between them.
type Orchestrator struct {
	store     Store
	freshness Freshness
	runner    PhaseRunner
	recorder  *history.Recorder
	phases    []phase.Def
	breaker   *breaker.Breaker
	logger    *logging.Logger

	maxIterations int
	syncEvery     int
	syncTimeout   time.Duration

	runID string
	state state
}

// New creates an Orchestrator. Breaker misconfiguration is rejected here,
// before the loop ever starts.
func New(opts Options) (*Orchestrator, error) {
	b, err := breaker.New(opts.BreakerWindow, opts.BreakerThreshold)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	phases := opts.Phases
	if len(phases) == 0 {
		phases = phase.DefaultSequence()
	}
	syncTimeout := opts.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = time.Minute
	}

	runID := uuid.New().String()
	return &Orchestrator{
		store:         opts.Store,
		freshness:     opts.Freshness,
		runner:        opts.Runner,
		recorder:      opts.Recorder,
		phases:        phases,
		breaker:       b,
		logger:        logger.WithRun(runID),
		maxIterations: opts.MaxIterations,
		syncEvery:     opts.SyncEvery,
		syncTimeout:   syncTimeout,
		runID:         runID,
	}, nil
}

// RunID returns the identifier assigned to this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

func (o *Orchestrator) transition(s state) {
	o.logger.Debug("loop state change", "from", o.state.String(), "to", s.String())
	o.state = s
}

// Run drives iterations until a halt condition. The returned summary is
// always non-nil; err is set only for fatal halts.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	o.logger.Info("run starting", "phases", len(o.phases), "max_iterations", o.maxIterations)

	iteration := 0
	for {
		if err := ctx.Err(); err != nil {
			return o.halt(iteration, start, HaltFatal, errors.ErrCanceled)
		}
		if o.maxIterations > 0 && iteration >= o.maxIterations {
			o.logger.Info("iteration limit reached", "limit", o.maxIterations)
			return o.halt(iteration, start, HaltIterationLimit, nil)
		}
		iteration++

		reason, err := o.iterate(ctx, iteration)
		if reason != "" {
			return o.halt(iteration-1, start, reason, err)
		}
		if err != nil {
			return o.halt(iteration, start, HaltFatal, err)
		}

		if o.breaker.Open() {
			o.logger.Warn("circuit breaker open",
				"failures", o.breaker.Failures(), "window", o.breaker.Recorded())
			return o.halt(iteration, start, HaltBreaker, nil)
		}
	}
}

// iterate runs one full select/execute/reconcile cycle. A returned halt
// reason stops the loop before the iteration counts as executed.
func (o *Orchestrator) iterate(ctx context.Context, iteration int) (HaltReason, error) {
	log := o.logger.WithIteration(iteration)
	iterStart := time.Now()
	retriesBefore := o.store.RetryCount()

	// Selecting: find the next target and freeze the "before" view.
	o.transition(stateSelecting)
	ready, err := o.store.ListReady(ctx)
	if err != nil {
		return "", err
	}
	if len(ready) == 0 {
		log.Info("no ready work remaining")
		return HaltComplete, nil
	}
	target := pickTarget(ready)
	log.Info("selected work item", "item", target.ID, "title", target.Title, "priority", target.Priority)

	before, err := snapshot.Capture(ctx, o.store)
	if err != nil {
		return "", err
	}

	o.maybeSync(ctx, iteration, log)

	// Executing: run the phase sequence; a non-OK phase ends the sequence.
	o.transition(stateExecuting)
	outcomes := make([]history.PhaseOutcome, 0, len(o.phases))
	iterationOK := true
	for _, def := range o.phases {
		res := o.runner.Run(ctx, def, target.ID)
		outcomes = append(outcomes, history.PhaseOutcome{
			Phase:    res.Phase,
			Outcome:  string(res.Outcome),
			ExitCode: res.ExitCode,
			Elapsed:  res.Elapsed,
		})
		if !res.Outcome.Success() {
			log.Warn("phase did not complete",
				"phase", res.Phase, "outcome", string(res.Outcome), "error", res.Err)
			iterationOK = false
			break
		}
		log.Info("phase complete", "phase", res.Phase, "elapsed", res.Elapsed.String())
	}

	// Reconciling: compare before/after, attribute the work, record it.
	o.transition(stateReconciling)
	after, err := snapshot.Capture(ctx, o.store)
	if err != nil {
		return "", err
	}

	changed, _ := after.ChangedSince(before)
	worked := DetectWorkedItem(changed, target.ID)

	// Ancestors come from the before snapshot: a worked item that was just
	// closed is gone from the after view but was present when selected.
	var epic string
	if worked != "" {
		ancestors := snapshot.BuildAncestors(ctx, before, o.lookupItem)
		epic, _ = ancestors.Epic(worked)
	}

	followUps := 0
	for id := range changed {
		if _, existed := before.Get(id); !existed {
			if _, present := after.Get(id); present {
				followUps++
			}
		}
	}

	status := history.StatusSuccess
	if !iterationOK {
		status = history.StatusFailure
	}
	if o.recorder != nil {
		o.recorder.Append(history.IterationRecord{
			RunID:      o.runID,
			Iteration:  iteration,
			Phases:     outcomes,
			WorkedItem: worked,
			Epic:       epic,
			FollowUps:  followUps,
			Retries:    int(o.store.RetryCount() - retriesBefore),
			Status:     status,
			Elapsed:    time.Since(iterStart),
			RecordedAt: time.Now().UTC(),
		})
	}
	o.breaker.Record(iterationOK)

	log.Info("iteration complete",
		"status", string(status), "worked", worked, "follow_ups", followUps,
		"elapsed", time.Since(iterStart).String())
	return "", nil
}

// maybeSync runs a timeout-bounded store sync on the periodic cadence or
// when the database changed externally. Sync failure is logged and absorbed:
// the loop is still correct against a stale replica, just less current.
func (o *Orchestrator) maybeSync(ctx context.Context, iteration int, log *logging.Logger) {
	periodic := o.syncEvery > 0 && iteration%o.syncEvery == 0
	stale := o.freshness != nil && o.freshness.Stale()
	if !periodic && !stale {
		return
	}

	syncCtx, cancel := context.WithTimeout(ctx, o.syncTimeout)
	defer cancel()

	log.Info("syncing store", "periodic", periodic, "stale", stale)
	if err := o.store.Sync(syncCtx); err != nil {
		log.Warn("store sync failed", "error", err)
		return
	}
	if o.freshness != nil {
		o.freshness.Reset()
	}
}

// lookupItem adapts Show into the single-item fallback the ancestor walk
// uses for parents missing from a snapshot.
func (o *Orchestrator) lookupItem(ctx context.Context, id string) (store.WorkItem, bool) {
	item, err := o.store.Show(ctx, id)
	if err != nil || item == nil {
		return store.WorkItem{}, false
	}
	return *item, true
}

// halt finalizes the run. Fatal halts append a halted record so the history
// shows where the run died.
func (o *Orchestrator) halt(iterations int, start time.Time, reason HaltReason, err error) (*RunSummary, error) {
	o.transition(stateHalted)

	detail := ""
	if err != nil {
		detail = err.Error()
		if o.recorder != nil && reason == HaltFatal {
			o.recorder.Append(history.IterationRecord{
				RunID:      o.runID,
				Iteration:  iterations,
				Status:     history.StatusHalted,
				RecordedAt: time.Now().UTC(),
			})
		}
	}

	summary := &RunSummary{
		RunID:      o.runID,
		Iterations: iterations,
		Halt:       reason,
		Detail:     detail,
		Elapsed:    time.Since(start),
	}
	if o.recorder != nil {
		summary.Totals = o.recorder.Summarize()
	}

	o.logger.Info("run halted",
		"reason", string(reason), "iterations", iterations, "elapsed", summary.Elapsed.String())
	if reason == HaltFatal {
		return summary, err
	}
	return summary, nil
}

// pickTarget chooses the most urgent ready item: lowest priority value,
// ties broken by ID for determinism.
func pickTarget(ready []store.WorkItem) *store.WorkItem {
	best := &ready[0]
	for i := 1; i < len(ready); i++ {
		item := &ready[i]
		if item.Priority < best.Priority ||
			(item.Priority == best.Priority && item.ID < best.ID) {
			best = item
		}
	}
	return best
}
