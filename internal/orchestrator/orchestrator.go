// Package orchestrator launches operations as isolated child processes,
// streaming their output into the store and the live broadcaster.
package orchestrator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/pmontanari/screenops/internal/broadcast"
	"github.com/pmontanari/screenops/internal/ops"
	"github.com/pmontanari/screenops/internal/store"
)

// ErrNotRunning is returned by Stop when the run already reached a
// terminal status.
var ErrNotRunning = errors.New("run is not running")

// CommandFunc builds the child process command for a run. The default
// re-executes this binary as `<self> op <run-id>`.
type CommandFunc func(run *store.Run) (*exec.Cmd, error)

type Orchestrator struct {
	store   store.Store
	bcast   *broadcast.Broadcaster
	logger  *slog.Logger
	command CommandFunc

	mu      sync.Mutex
	handles map[int64]*exec.Cmd
	stopped map[int64]bool
}

type Option func(*Orchestrator)

// WithCommand overrides how child processes are built.
func WithCommand(fn CommandFunc) Option {
	return func(o *Orchestrator) {
		o.command = fn
	}
}

func New(st store.Store, bcast *broadcast.Broadcaster, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		bcast:   bcast,
		logger:  logger,
		command: selfCommand,
		handles: make(map[int64]*exec.Cmd),
		stopped: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// selfCommand re-executes the running binary in child mode.
func selfCommand(run *store.Run) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return exec.Command(self, "op", run.Operation), nil
}

// Start persists a new run and spawns its child process. The returned
// id is valid even when the spawn fails; the failure is then recorded
// on the run itself.
func (o *Orchestrator) Start(operation string, params map[string]any) (int64, error) {
	if _, ok := ops.Lookup(operation); !ok {
		return 0, fmt.Errorf("unknown operation %q", operation)
	}
	paramEnv, err := ops.EncodeEnv(params)
	if err != nil {
		return 0, err
	}

	run, err := o.store.CreateRun(operation, params)
	if err != nil {
		return 0, err
	}
	logger := o.logger.With("run_id", run.ID, "operation", operation)

	cmd, err := o.command(run)
	if err != nil {
		o.failSpawn(run.ID, logger, err)
		return run.ID, nil
	}
	cmd.Env = append(os.Environ(), paramEnv...)
	// Children get their own process group so cancellation can reap
	// whatever they spawned in turn.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		o.failSpawn(run.ID, logger, err)
		return run.ID, nil
	}
	logger.Info("run started", "pid", cmd.Process.Pid)

	if err := o.store.SetPID(run.ID, cmd.Process.Pid); err != nil {
		logger.Error("record pid", "error", err)
	}

	o.mu.Lock()
	o.handles[run.ID] = cmd
	o.mu.Unlock()

	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		o.stream(run.ID, pr, logger)
	}()
	go o.wait(run.ID, cmd, pw, streamed, logger)

	return run.ID, nil
}

// failSpawn records a spawn failure as a failed run with exit code 1.
func (o *Orchestrator) failSpawn(runID int64, logger *slog.Logger, spawnErr error) {
	logger.Error("spawn failed", "error", spawnErr)
	line := fmt.Sprintf("failed to start: %v\n", spawnErr)
	if err := o.store.AppendOutput(runID, line); err != nil {
		logger.Error("record spawn failure", "error", err)
	}
	o.bcast.Publish(runID, broadcast.Event{Type: broadcast.EventOutput, Data: line})
	if err := o.store.FinishRun(runID, 1); err != nil {
		logger.Error("finish run", "error", err)
	}
	o.bcast.Finish(runID, 1)
}

// stream appends each output line to the store and fans it out, in
// emit order.
func (o *Orchestrator) stream(runID int64, r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		if err := o.store.AppendOutput(runID, line); err != nil {
			logger.Error("append output", "error", err)
		}
		o.bcast.Publish(runID, broadcast.Event{Type: broadcast.EventOutput, Data: line})
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read child output", "error", err)
	}
}

// wait reaps the child and records its terminal state once the output
// stream has fully drained, so the terminal event never overtakes the
// last output line.
func (o *Orchestrator) wait(runID int64, cmd *exec.Cmd, pw *io.PipeWriter, streamed <-chan struct{}, logger *slog.Logger) {
	err := cmd.Wait()
	pw.Close()
	<-streamed

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil && exitCode == 0 {
		exitCode = 1
	}

	o.mu.Lock()
	if o.stopped[runID] {
		exitCode = store.CancelExitCode
	}
	delete(o.handles, runID)
	delete(o.stopped, runID)
	o.mu.Unlock()

	if err := o.store.FinishRun(runID, exitCode); err != nil {
		logger.Error("finish run", "error", err)
	}
	o.bcast.Finish(runID, exitCode)
	logger.Info("run finished", "exit_code", exitCode)
}

// Stop cancels a running run. The in-memory process handle is
// preferred; without one (after a restart) the persisted pid is
// killed fire-and-forget. Either way the run terminates with the
// cancellation sentinel.
func (o *Orchestrator) Stop(runID int64) error {
	o.mu.Lock()
	cmd, ok := o.handles[runID]
	if ok {
		o.stopped[runID] = true
	}
	o.mu.Unlock()

	if ok {
		killGroup(cmd.Process.Pid)
		return nil
	}

	run, err := o.store.GetRun(runID)
	if err != nil {
		return err
	}
	if !run.Running() {
		return ErrNotRunning
	}

	if pid, err := o.store.RunPID(runID); err == nil {
		killGroup(pid)
	} else {
		o.logger.Warn("no pid recorded for run", "run_id", runID)
	}

	if err := o.store.FinishRun(runID, store.CancelExitCode); err != nil {
		return err
	}
	o.bcast.Finish(runID, store.CancelExitCode)
	o.logger.Info("run cancelled by pid", "run_id", runID)
	return nil
}

// killGroup terminates the process group, falling back to the single
// process when the group is gone.
func killGroup(pid int) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		syscall.Kill(pid, syscall.SIGKILL)
	}
}

// Running reports whether the orchestrator holds a live handle for the
// run.
func (o *Orchestrator) Running(runID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.handles[runID]
	return ok
}
