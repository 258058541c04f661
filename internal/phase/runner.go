package phase

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/weilyn/cadence/internal/errors"
	"github.com/weilyn/cadence/internal/logging"
)

// maxTailLines bounds how much phase output is kept for the record.
const maxTailLines = 50

// OutputFunc receives each chunk of agent output as it arrives. The
// supervisor uses it to reset the idle timer.
type OutputFunc func(line string)

// Result is what a runner reports once the agent process exits.
type Result struct {
	ExitCode int
	// Tail holds the last lines of combined output for diagnostics.
	Tail string
}

// Runner executes a single phase against a target work item. Run blocks
// until the agent exits or ctx is canceled; cancellation must terminate
// the agent and everything it spawned.
type Runner interface {
	Run(ctx context.Context, def Def, targetID string, onOutput OutputFunc) (*Result, error)
}

// AgentRunner runs phases by invoking an agent CLI as a subprocess with the
// rendered prompt. Output is streamed line by line so the supervisor sees
// activity as it happens.
type AgentRunner struct {
	command string
	logger  *logging.Logger
}

// NewAgentRunner creates a runner that invokes command for each phase.
func NewAgentRunner(command string, logger *logging.Logger) *AgentRunner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &AgentRunner{command: command, logger: logger}
}

// Run invokes the agent with the phase prompt and streams its output.
// The agent is started in its own process group so that cancellation kills
// any children it spawned, not just the direct process.
func (r *AgentRunner) Run(ctx context.Context, def Def, targetID string, onOutput OutputFunc) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.command, "-p", def.RenderPrompt(targetID))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	r.logger.Debug("phase agent started", "phase", def.Name, "pid", cmd.Process.Pid)

	tail := newTailBuffer(maxTailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			if onOutput != nil {
				onOutput(line)
			}
		}
	}()

	wg.Wait()
	err = cmd.Wait()

	result := &Result{ExitCode: cmd.ProcessState.ExitCode(), Tail: tail.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit is an outcome, not a runner error.
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// NopRunner pretends every phase succeeded immediately. Used by dry runs,
// where selection and snapshots happen but no agent is invoked.
type NopRunner struct{}

func (NopRunner) Run(_ context.Context, def Def, _ string, _ OutputFunc) (*Result, error) {
	return &Result{ExitCode: 0, Tail: "dry-run: skipped " + def.Name}, nil
}

// tailBuffer keeps the last n lines of output.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
