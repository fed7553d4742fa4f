package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltRunsBucket = "runs"

// BoltStore implements the Store interface using BoltDB. It trades the
// SQL surface for a pure-Go single file with no query layer, useful on
// targets where the sqlite driver is unwanted.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store at the given path.
func NewBoltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltRunsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// runKey is the big-endian id so bucket order equals insertion order.
func runKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (s *BoltStore) CreateRun(operation string, params map[string]any) (*Run, error) {
	if operation == "" {
		return nil, fmt.Errorf("operation is required")
	}
	run := &Run{
		Operation: operation,
		Params:    params,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltRunsBucket))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next run id: %w", err)
		}
		run.ID = int64(seq)

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return bucket.Put(runKey(run.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// update applies a mutation to one stored run inside a write
// transaction.
func (s *BoltStore) update(runID int64, mutate func(*Run)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltRunsBucket))
		data := bucket.Get(runKey(runID))
		if data == nil {
			return ErrRunNotFound
		}

		run := &Run{}
		if err := json.Unmarshal(data, run); err != nil {
			return fmt.Errorf("unmarshal run %d: %w", runID, err)
		}
		mutate(run)

		updated, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal run %d: %w", runID, err)
		}
		return bucket.Put(runKey(runID), updated)
	})
}

func (s *BoltStore) SetPID(runID int64, pid int) error {
	return s.update(runID, func(run *Run) {
		run.PID = &pid
	})
}

func (s *BoltStore) AppendOutput(runID int64, chunk string) error {
	return s.update(runID, func(run *Run) {
		run.Output += chunk
	})
}

func (s *BoltStore) FinishRun(runID int64, exitCode int) error {
	return s.update(runID, func(run *Run) {
		now := time.Now().UTC()
		run.Status = StatusForExit(exitCode)
		run.ExitCode = &exitCode
		run.FinishedAt = &now
	})
}

func (s *BoltStore) GetRun(runID int64) (*Run, error) {
	var run *Run
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(boltRunsBucket)).Get(runKey(runID))
		if data == nil {
			return ErrRunNotFound
		}
		run = &Run{}
		return json.Unmarshal(data, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *BoltStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}

	var runs []*Run
	err := s.db.View(func(tx *bolt.Tx) error {
		// Walk backwards so the newest runs come first.
		c := tx.Bucket([]byte(boltRunsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			run := &Run{}
			if err := json.Unmarshal(v, run); err != nil {
				return fmt.Errorf("unmarshal run %x: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *BoltStore) RunPID(runID int64) (int, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return 0, err
	}
	if run.PID == nil {
		return 0, ErrRunNotFound
	}
	return *run.PID, nil
}

// Close releases resources held by the store.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
