// Package schedule fires configured operations on cron expressions,
// exactly as an operator would start them from the dashboard.
package schedule

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/store"
)

// Starter launches an operation run and returns its id.
type Starter interface {
	Start(operation string, params map[string]any) (int64, error)
}

// Scheduler wraps robfig/cron around the run orchestrator.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	starter Starter
	runs    store.Store

	mu      sync.Mutex
	entries []*entry
}

type entry struct {
	schedule config.Schedule
	entryID  cron.EntryID
	lastRun  int64
	fired    int64
	skipped  int64
}

func New(starter Starter, runs store.Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := &cronSlogAdapter{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter)),
		),
		logger:  logger,
		starter: starter,
		runs:    runs,
	}
}

// Add registers one configured schedule.
func (s *Scheduler) Add(sched config.Schedule) error {
	if sched.Operation == "" {
		return fmt.Errorf("schedule has no operation")
	}
	parsed, err := ParseExpr(sched.Cron)
	if err != nil {
		return fmt.Errorf("schedule for %s: %w", sched.Operation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{schedule: sched}
	e.entryID = s.cron.Schedule(parsed, cron.FuncJob(func() { s.fire(e) }))
	s.entries = append(s.entries, e)

	s.logger.Info("schedule added",
		slog.String("operation", sched.Operation),
		slog.String("cron", sched.Cron),
		slog.Time("next_run", parsed.Next(time.Now())),
	)
	return nil
}

// fire starts the entry's operation unless its previous scheduled run
// is still going, in which case the tick is skipped.
func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	last := e.lastRun
	s.mu.Unlock()

	logger := s.logger.With(slog.String("operation", e.schedule.Operation))

	if last != 0 {
		run, err := s.runs.GetRun(last)
		if err == nil && run.Running() {
			logger.Warn("previous scheduled run still active, skipping", slog.Int64("run_id", last))
			s.mu.Lock()
			e.skipped++
			s.mu.Unlock()
			return
		}
	}

	runID, err := s.starter.Start(e.schedule.Operation, e.schedule.Params)
	if err != nil {
		logger.Error("scheduled start failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("scheduled run started", slog.Int64("run_id", runID))

	s.mu.Lock()
	e.lastRun = runID
	e.fired++
	s.mu.Unlock()
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("starting scheduler", slog.Int("schedule_count", count))
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for in-flight fire calls.
// Already-started child processes keep running; they belong to the
// orchestrator.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Stats reports per-schedule counters, mainly for the dashboard.
type Stats struct {
	Operation string `json:"operation"`
	Cron      string `json:"cron"`
	LastRunID int64  `json:"last_run_id,omitempty"`
	Fired     int64  `json:"fired"`
	Skipped   int64  `json:"skipped"`
}

func (s *Scheduler) Schedules() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]Stats, 0, len(s.entries))
	for _, e := range s.entries {
		stats = append(stats, Stats{
			Operation: e.schedule.Operation,
			Cron:      e.schedule.Cron,
			LastRunID: e.lastRun,
			Fired:     e.fired,
			Skipped:   e.skipped,
		})
	}
	return stats
}

// cronSlogAdapter adapts slog.Logger to the cron.Logger interface.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := make([]any, 0, len(keysAndValues)+1)
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
