package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run history in a single database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies the schema.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// The driver multiplexes one file; a single connection avoids
	// SQLITE_BUSY between the writer goroutines.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	pragmas := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;
	`
	if _, err := s.db.Exec(pragmas); err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		params TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		output TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		exit_code INTEGER,
		pid INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Migration: add pid column if the table predates it
	s.db.Exec(`ALTER TABLE runs ADD COLUMN pid INTEGER`)

	return nil
}

func (s *SQLiteStore) CreateRun(operation string, params map[string]any) (*Run, error) {
	if operation == "" {
		return nil, fmt.Errorf("operation is required")
	}
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	startedAt := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO runs (operation, params, status, started_at) VALUES (?, ?, ?, ?)`,
		operation, string(paramsJSON), string(StatusRunning), startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:        id,
		Operation: operation,
		Params:    params,
		Status:    StatusRunning,
		StartedAt: startedAt,
	}, nil
}

func (s *SQLiteStore) SetPID(runID int64, pid int) error {
	return s.exec(`UPDATE runs SET pid = ? WHERE id = ?`, pid, runID)
}

func (s *SQLiteStore) AppendOutput(runID int64, chunk string) error {
	return s.exec(`UPDATE runs SET output = output || ? WHERE id = ?`, chunk, runID)
}

func (s *SQLiteStore) FinishRun(runID int64, exitCode int) error {
	return s.exec(
		`UPDATE runs SET status = ?, exit_code = ?, finished_at = ? WHERE id = ?`,
		string(StatusForExit(exitCode)), exitCode, time.Now().UTC(), runID,
	)
}

// exec runs an update that must hit exactly one run.
func (s *SQLiteStore) exec(query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const runColumns = `id, operation, params, status, output, started_at, finished_at, exit_code, pid`

func (s *SQLiteStore) GetRun(runID int64) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) RunPID(runID int64) (int, error) {
	var pid sql.NullInt64
	err := s.db.QueryRow(`SELECT pid FROM runs WHERE id = ?`, runID).Scan(&pid)
	if err == sql.ErrNoRows || (err == nil && !pid.Valid) {
		return 0, ErrRunNotFound
	}
	if err != nil {
		return 0, err
	}
	return int(pid.Int64), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		paramsJSON string
		status     string
		startedAt  sql.NullTime
		finishedAt sql.NullTime
		exitCode   sql.NullInt64
		pid        sql.NullInt64
	)
	err := row.Scan(
		&run.ID, &run.Operation, &paramsJSON, &status, &run.Output,
		&startedAt, &finishedAt, &exitCode, &pid,
	)
	if err != nil {
		return nil, err
	}

	run.Status = Status(status)
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &run.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params for run %d: %w", run.ID, err)
		}
	}
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if pid.Valid {
		p := int(pid.Int64)
		run.PID = &p
	}
	return &run, nil
}
