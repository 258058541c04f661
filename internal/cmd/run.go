package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weilyn/cadence/internal/config"
	"github.com/weilyn/cadence/internal/history"
	"github.com/weilyn/cadence/internal/logging"
	"github.com/weilyn/cadence/internal/loop"
	"github.com/weilyn/cadence/internal/phase"
	"github.com/weilyn/cadence/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the iteration loop until no ready work remains",
	Long: `Run drives the loop: select the most urgent ready item, execute the
phase sequence against it, reconcile what changed in the store, and repeat.

The run halts on its own when the store has no ready work left, when the
circuit breaker opens, or when the iteration limit is reached. Exit codes
distinguish the outcomes:

  0  all ready work complete
  2  circuit breaker opened
  3  iteration limit reached
  4  fatal error`,
	RunE:          runRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	runMaxIterations int
	runDryRun        bool
	runOutput        string
)

func init() {
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Stop after N iterations (0 = use config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Select and snapshot but skip the agent phases")
	runCmd.Flags().StringVar(&runOutput, "output", "text", "Output format: text or json")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	// runLoop owns the deferred cleanup; exiting only after it returns
	// lets the log file sync and the watcher shut down first.
	code, err := runLoop(cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// runLoop wires the configured pieces together, drives the loop, and
// returns the exit code for the halt reason.
func runLoop(cmd *cobra.Command) (int, error) {
	if runOutput != "text" && runOutput != "json" {
		return 0, fmt.Errorf("unknown output format %q (want text or json)", runOutput)
	}

	cfg, err := config.Load()
	if err != nil {
		return 0, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("failed to get current directory: %w", err)
	}
	stateDir := cfg.Paths.ResolveStateDir(cwd)

	logStateDir := stateDir
	if !cfg.Logging.Enabled {
		logStateDir = ""
	}
	logger, err := logging.NewLogger(logStateDir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return 0, err
	}
	defer logger.Close()

	client := store.NewClient(cfg.Store.Command, cfg.Loop.RetryAttempts, cfg.Loop.RetryBackoff(), logger)

	var freshness loop.Freshness
	if cfg.Store.Database != "" {
		watcher, werr := store.NewWatcher(cfg.Store.Database, logger)
		if werr != nil {
			// Degrade to the periodic sync cadence only.
			logger.Warn("store watcher unavailable", "error", werr)
		} else {
			defer watcher.Close()
			freshness = watcher
		}
	}

	phases := phase.DefaultSequence()
	if cfg.Phases.File != "" {
		phases, err = phase.LoadSequence(cfg.Phases.File)
		if err != nil {
			return 0, err
		}
	}

	var runner phase.Runner = phase.NewAgentRunner(cfg.Phases.Runner, logger)
	if runDryRun {
		runner = phase.NopRunner{}
	}

	maxIterations := cfg.Loop.MaxIterations
	if runMaxIterations > 0 {
		maxIterations = runMaxIterations
	}

	recorder := history.NewRecorder(stateDir, logger)
	orch, err := loop.New(loop.Options{
		Store:            client,
		Freshness:        freshness,
		Runner:           phase.NewSupervisor(runner, logger),
		Recorder:         recorder,
		Phases:           phases,
		Logger:           logger,
		MaxIterations:    maxIterations,
		SyncEvery:        cfg.Loop.SyncEvery,
		SyncTimeout:      cfg.Store.SyncTimeout(),
		BreakerWindow:    cfg.Breaker.Window,
		BreakerThreshold: cfg.Breaker.Threshold,
	})
	if err != nil {
		return 0, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := orch.Run(ctx)

	if runOutput == "json" {
		report := struct {
			Run     *loop.RunSummary          `json:"run"`
			Records []history.IterationRecord `json:"records"`
		}{summary, recorder.Records()}
		if report.Records == nil {
			report.Records = []history.IterationRecord{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return 0, err
		}
	} else {
		printRunSummary(summary, recorder.Summarize())
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render(fmt.Sprintf("Error: %v", runErr)))
	}
	return summary.Halt.ExitCode(), nil
}

func printRunSummary(summary *loop.RunSummary, totals history.Summary) {
	fmt.Println()
	fmt.Println(headerStyle.Render("RUN SUMMARY"))
	fmt.Printf("Run:        %s\n", dimStyle.Render(summary.RunID))
	fmt.Printf("Halted:     %s\n", statusStyle(string(summary.Halt)).Render(summary.Halt.String()))
	fmt.Printf("Iterations: %d (%d succeeded, %d failed)\n",
		totals.Iterations, totals.Successes, totals.Failures)
	if totals.FollowUps > 0 {
		fmt.Printf("Follow-ups: %d filed\n", totals.FollowUps)
	}
	fmt.Printf("Elapsed:    %s\n", summary.Elapsed.Round(time.Second))
}
