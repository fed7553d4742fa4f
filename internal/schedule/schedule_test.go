package schedule

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/store"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"five field cron", "*/5 * * * *", false},
		{"six field cron", "0 30 2 * * *", false},
		{"descriptor", "@daily", false},
		{"every minutes", "every 5m", false},
		{"every spelled out", "every 2 hours", false},
		{"every seconds", "every 30s", false},
		{"empty", "", true},
		{"garbage", "whenever", true},
		{"zero interval", "every 0m", true},
		{"bad unit spacing", "every 5 parsecs", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExpr(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseExpr_IntervalSpacing(t *testing.T) {
	sched, err := ParseExpr("every 90s")
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	assert.Equal(t, from.Add(90*time.Second), next)
}

// fakeStarter records start calls and hands out sequential run ids.
type fakeStarter struct {
	mu    sync.Mutex
	calls []string
	next  int64
}

func (f *fakeStarter) Start(operation string, params map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operation)
	f.next++
	return f.next, nil
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(t *testing.T, starter Starter) (*Scheduler, store.Store) {
	t.Helper()
	runs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(starter, runs, logger), runs
}

func TestAdd_InvalidSchedule(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeStarter{})

	assert.Error(t, s.Add(config.Schedule{Operation: "", Cron: "@daily"}))
	assert.Error(t, s.Add(config.Schedule{Operation: "check_api", Cron: "nope"}))
	assert.NoError(t, s.Add(config.Schedule{Operation: "check_api", Cron: "@daily"}))
}

func TestFire_StartsRun(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := newTestScheduler(t, starter)
	require.NoError(t, s.Add(config.Schedule{Operation: "check_api", Cron: "@daily"}))

	s.fire(s.entries[0])

	assert.Equal(t, 1, starter.count())
	stats := s.Schedules()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Fired)
	assert.Equal(t, int64(1), stats[0].LastRunID)
}

func TestFire_SkipsWhilePreviousRunActive(t *testing.T) {
	starter := &fakeStarter{}
	s, runs := newTestScheduler(t, starter)
	require.NoError(t, s.Add(config.Schedule{Operation: "sync_gmail", Cron: "every 1m"}))

	// Seed a run the store reports as still running; the fake starter
	// issues id 1 on the first fire, matching this record.
	run, err := runs.CreateRun("sync_gmail", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), run.ID)

	s.fire(s.entries[0])
	assert.Equal(t, 1, starter.count())

	// Second tick: run 1 is still running, so the tick is skipped.
	s.fire(s.entries[0])
	assert.Equal(t, 1, starter.count())
	assert.Equal(t, int64(1), s.Schedules()[0].Skipped)

	// Once the run finishes the next tick fires again.
	require.NoError(t, runs.FinishRun(run.ID, 0))
	s.fire(s.entries[0])
	assert.Equal(t, 2, starter.count())
}

func TestStartStop(t *testing.T) {
	starter := &fakeStarter{}
	s, _ := newTestScheduler(t, starter)
	require.NoError(t, s.Add(config.Schedule{Operation: "check_api", Cron: "@daily"}))

	s.Start()
	s.Stop()
}
