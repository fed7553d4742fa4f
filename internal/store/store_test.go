package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDriverTests exercises the Store contract against every driver.
func runDriverTests(t *testing.T, open func(t *testing.T) Store) {
	t.Run("create and get", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		run, err := s.CreateRun("sync_gmail", map[string]any{"dry_run": true})
		require.NoError(t, err)
		assert.Greater(t, run.ID, int64(0))
		assert.Equal(t, StatusRunning, run.Status)
		assert.False(t, run.StartedAt.IsZero())

		got, err := s.GetRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, "sync_gmail", got.Operation)
		assert.Equal(t, StatusRunning, got.Status)
		assert.Equal(t, map[string]any{"dry_run": true}, got.Params)
		assert.True(t, got.Running())
		assert.Nil(t, got.FinishedAt)
		assert.Nil(t, got.ExitCode)
	})

	t.Run("empty operation rejected", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		_, err := s.CreateRun("", nil)
		assert.Error(t, err)
	})

	t.Run("append output preserves order", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		run, err := s.CreateRun("check_api", nil)
		require.NoError(t, err)

		require.NoError(t, s.AppendOutput(run.ID, "L1\n"))
		require.NoError(t, s.AppendOutput(run.ID, "L2\n"))
		require.NoError(t, s.AppendOutput(run.ID, "L3\n"))

		got, err := s.GetRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, "L1\nL2\nL3\n", got.Output)
	})

	t.Run("finish maps exit code to status", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		tests := []struct {
			exitCode int
			want     Status
		}{
			{0, StatusCompleted},
			{1, StatusFailed},
			{CancelExitCode, StatusCancelled},
		}
		for _, tt := range tests {
			run, err := s.CreateRun("check_api", nil)
			require.NoError(t, err)
			require.NoError(t, s.FinishRun(run.ID, tt.exitCode))

			got, err := s.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			require.NotNil(t, got.ExitCode)
			assert.Equal(t, tt.exitCode, *got.ExitCode)
			require.NotNil(t, got.FinishedAt)
			assert.False(t, got.Running())
		}
	})

	t.Run("pid round trip", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		run, err := s.CreateRun("drop_candidates", nil)
		require.NoError(t, err)

		_, err = s.RunPID(run.ID)
		assert.ErrorIs(t, err, ErrRunNotFound, "pid not recorded yet")

		require.NoError(t, s.SetPID(run.ID, 4242))
		pid, err := s.RunPID(run.ID)
		require.NoError(t, err)
		assert.Equal(t, 4242, pid)
	})

	t.Run("list newest first with limit", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		var ids []int64
		for i := 0; i < 5; i++ {
			run, err := s.CreateRun("check_api", nil)
			require.NoError(t, err)
			ids = append(ids, run.ID)
		}

		runs, err := s.ListRuns(3)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, ids[4], runs[0].ID)
		assert.Equal(t, ids[3], runs[1].ID)
		assert.Equal(t, ids[2], runs[2].ID)
	})

	t.Run("unknown run", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		_, err := s.GetRun(9999)
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.ErrorIs(t, s.AppendOutput(9999, "x"), ErrRunNotFound)
		assert.ErrorIs(t, s.FinishRun(9999, 0), ErrRunNotFound)
		assert.ErrorIs(t, s.SetPID(9999, 1), ErrRunNotFound)
		_, err = s.RunPID(9999)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestSQLiteStore(t *testing.T) {
	runDriverTests(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	run, err := s.CreateRun("check_api", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetPID(run.ID, 77))
	require.NoError(t, s.Close())

	// Schema application must be idempotent and data must survive.
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	pid, err := s.RunPID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 77, pid)
}

func TestBoltStore(t *testing.T) {
	runDriverTests(t, func(t *testing.T) Store {
		s, err := NewBoltStore(filepath.Join(t.TempDir(), "runs.bolt"))
		require.NoError(t, err)
		return s
	})
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		driver  string
		path    string
		wantErr bool
	}{
		{"sqlite driver", "sqlite", filepath.Join(dir, "a.db"), false},
		{"bbolt driver", "bbolt", filepath.Join(dir, "b.bolt"), false},
		{"case insensitive", " SQLite ", filepath.Join(dir, "c.db"), false},
		{"unknown driver", "postgres", filepath.Join(dir, "d.db"), true},
		{"empty path", "sqlite", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(tt.driver, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}
