package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmontanari/screenops/internal/broadcast"
	"github.com/pmontanari/screenops/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// shellCommand runs a fixed shell script instead of re-executing the
// binary.
func shellCommand(script string) CommandFunc {
	return func(run *store.Run) (*exec.Cmd, error) {
		return exec.Command("/bin/sh", "-c", script), nil
	}
}

func waitTerminal(t *testing.T, s store.Store, runID int64) *store.Run {
	t.Helper()
	var run *store.Run
	require.Eventually(t, func() bool {
		var err error
		run, err = s.GetRun(runID)
		require.NoError(t, err)
		return !run.Running()
	}, 5*time.Second, 20*time.Millisecond)
	return run
}

func TestStart_CompletedRun(t *testing.T) {
	s := newTestStore(t)
	bcast := broadcast.New()
	o := New(s, bcast, testLogger(), WithCommand(shellCommand("echo L1; echo L2; echo L3")))

	runID, err := o.Start("check_api", map[string]any{"dry_run": true})
	require.NoError(t, err)

	run := waitTerminal(t, s, runID)
	assert.Equal(t, store.StatusCompleted, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 0, *run.ExitCode)
	assert.NotNil(t, run.FinishedAt)
	assert.NotNil(t, run.PID)
	assert.Equal(t, "L1\nL2\nL3\n", run.Output)
}

func TestStart_OutputOrderAndTerminalEvent(t *testing.T) {
	s := newTestStore(t)
	bcast := broadcast.New()
	o := New(s, bcast, testLogger(), WithCommand(shellCommand("echo L1; echo L2; echo L3")))

	// Subscribe before the run starts; runs get sequential ids so the
	// first run of a fresh store is id 1.
	_, ch := bcast.Subscribe(1)

	runID, err := o.Start("check_api", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), runID)

	var got []broadcast.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 4)
	assert.Equal(t, "L1\n", got[0].Data)
	assert.Equal(t, "L2\n", got[1].Data)
	assert.Equal(t, "L3\n", got[2].Data)
	assert.Equal(t, broadcast.EventFinished, got[3].Type)
	require.NotNil(t, got[3].ExitCode)
	assert.Equal(t, 0, *got[3].ExitCode)
}

func TestStart_FailedRun(t *testing.T) {
	s := newTestStore(t)
	o := New(s, broadcast.New(), testLogger(), WithCommand(shellCommand("echo boom >&2; exit 3")))

	runID, err := o.Start("check_api", nil)
	require.NoError(t, err)

	run := waitTerminal(t, s, runID)
	assert.Equal(t, store.StatusFailed, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 3, *run.ExitCode)
	assert.Contains(t, run.Output, "boom")
}

func TestStart_SpawnFailure(t *testing.T) {
	s := newTestStore(t)
	o := New(s, broadcast.New(), testLogger(), WithCommand(func(run *store.Run) (*exec.Cmd, error) {
		return nil, errors.New("no such operation binary")
	}))

	runID, err := o.Start("check_api", nil)
	require.NoError(t, err, "spawn failure is recorded on the run, not returned")

	run := waitTerminal(t, s, runID)
	assert.Equal(t, store.StatusFailed, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 1, *run.ExitCode)
	assert.Contains(t, run.Output, "failed to start")
}

func TestStart_UnknownOperation(t *testing.T) {
	s := newTestStore(t)
	o := New(s, broadcast.New(), testLogger())

	_, err := o.Start("reticulate_splines", nil)
	require.Error(t, err)

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	assert.Empty(t, runs, "no run persisted for unknown operations")
}

func TestStop_WithLiveHandle(t *testing.T) {
	s := newTestStore(t)
	o := New(s, broadcast.New(), testLogger(), WithCommand(shellCommand("echo started; sleep 30")))

	runID, err := o.Start("check_api", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return o.Running(runID) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, o.Stop(runID))

	run := waitTerminal(t, s, runID)
	assert.Equal(t, store.StatusCancelled, run.Status)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, store.CancelExitCode, *run.ExitCode)
	assert.False(t, o.Running(runID))
}

func TestStop_ByPersistedPID(t *testing.T) {
	s := newTestStore(t)

	// Simulate a run surviving an orchestrator restart: the process is
	// alive and its pid persisted, but no in-memory handle exists.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()
	go cmd.Wait()

	run, err := s.CreateRun("check_api", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetPID(run.ID, cmd.Process.Pid))

	o := New(s, broadcast.New(), testLogger())
	require.NoError(t, o.Stop(run.ID))

	got := waitTerminal(t, s, run.ID)
	assert.Equal(t, store.StatusCancelled, got.Status)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, store.CancelExitCode, *got.ExitCode)

	// The process group actually died.
	require.Eventually(t, func() bool {
		return syscall.Kill(cmd.Process.Pid, 0) != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStop_NotRunning(t *testing.T) {
	s := newTestStore(t)
	o := New(s, broadcast.New(), testLogger(), WithCommand(shellCommand("true")))

	runID, err := o.Start("check_api", nil)
	require.NoError(t, err)
	waitTerminal(t, s, runID)

	assert.ErrorIs(t, o.Stop(runID), ErrNotRunning)
	assert.ErrorIs(t, o.Stop(9999), store.ErrRunNotFound)
}

func TestConcurrentRunsDoNotInterleave(t *testing.T) {
	s := newTestStore(t)
	bcast := broadcast.New()

	var n int
	o := New(s, bcast, testLogger(), WithCommand(func(run *store.Run) (*exec.Cmd, error) {
		n++
		script := fmt.Sprintf("for i in 1 2 3 4 5; do echo run%d-$i; done", n)
		return exec.Command("/bin/sh", "-c", script), nil
	}))

	id1, err := o.Start("check_api", nil)
	require.NoError(t, err)
	id2, err := o.Start("check_api", nil)
	require.NoError(t, err)

	run1 := waitTerminal(t, s, id1)
	run2 := waitTerminal(t, s, id2)

	assert.Equal(t, "run1-1\nrun1-2\nrun1-3\nrun1-4\nrun1-5\n", run1.Output)
	assert.Equal(t, "run2-1\nrun2-2\nrun2-3\nrun2-4\nrun2-5\n", run2.Output)
}
