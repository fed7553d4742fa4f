// Package store provides persistence for operation run history.
package store

import (
	"errors"
	"time"
)

// CancelExitCode is the sentinel recorded when a run is stopped by an
// operator rather than exiting on its own.
const CancelExitCode = -2

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StatusForExit maps a child exit code to the terminal run status.
func StatusForExit(exitCode int) Status {
	switch exitCode {
	case 0:
		return StatusCompleted
	case CancelExitCode:
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Run is one execution of an operation.
type Run struct {
	ID         int64          `json:"id"`
	Operation  string         `json:"operation"`
	Params     map[string]any `json:"params,omitempty"`
	Status     Status         `json:"status"`
	Output     string         `json:"output"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	ExitCode   *int           `json:"exit_code,omitempty"`
	PID        *int           `json:"pid,omitempty"`
}

// Running reports whether the run has started but not reached a
// terminal status.
func (r *Run) Running() bool {
	return r.Status == StatusPending || r.Status == StatusRunning
}

// Duration returns the wall time of a finished run, zero otherwise.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists runs and their streamed output.
type Store interface {
	// CreateRun persists a new run in running state with StartedAt set,
	// returning the assigned monotonically increasing id.
	CreateRun(operation string, params map[string]any) (*Run, error)

	// SetPID records the child process id once the spawn succeeds.
	SetPID(runID int64, pid int) error

	// AppendOutput concatenates a chunk onto the run's output log.
	AppendOutput(runID int64, chunk string) error

	// FinishRun records the exit code, derives the terminal status from
	// it and stamps FinishedAt.
	FinishRun(runID int64, exitCode int) error

	// GetRun retrieves a run by id, ErrRunNotFound if absent.
	GetRun(runID int64) (*Run, error)

	// ListRuns returns up to limit runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// RunPID returns the persisted pid of a run, ErrRunNotFound if the
	// run is absent or never recorded a pid.
	RunPID(runID int64) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
