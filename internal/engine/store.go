package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store persists execution state across process restarts. Concurrent
// writers are serialized with a file lock so parallel CLI invocations do
// not interleave writes.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create execution store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create execution lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open execution sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			is_complete INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_executions_status_updated ON executions(status, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init execution schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(state ExecutionState) error {
	if strings.TrimSpace(state.ExecutionID) == "" {
		return fmt.Errorf("save execution: missing execution id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock execution store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock execution store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}
	createdUnix, _ := parseRFC3339Unix(state.CreatedAt)
	updatedUnix, _ := parseRFC3339Unix(state.UpdatedAt)
	if createdUnix == 0 {
		createdUnix = time.Now().UTC().Unix()
	}
	if updatedUnix == 0 {
		updatedUnix = time.Now().UTC().Unix()
	}
	complete := 0
	if state.IsComplete {
		complete = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO executions (execution_id, status, is_complete, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			status=excluded.status,
			is_complete=excluded.is_complete,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, state.ExecutionID, state.StatusLabel(), complete, createdUnix, updatedUnix, payload)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

func (s *Store) Get(executionID string) (ExecutionState, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM executions WHERE execution_id = ?", executionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExecutionState{}, fmt.Errorf("execution not found: %s", executionID)
		}
		return ExecutionState{}, fmt.Errorf("read execution: %w", err)
	}
	var state ExecutionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return ExecutionState{}, fmt.Errorf("decode execution payload: %w", err)
	}
	return state, nil
}

func (s *Store) List(status string, limit int) ([]ExecutionState, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(status) == "" {
		rows, err = s.db.Query("SELECT payload FROM executions ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM executions WHERE status = ? ORDER BY updated_at DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	states := make([]ExecutionState, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		var state ExecutionState
		if err := json.Unmarshal(payload, &state); err != nil {
			return nil, fmt.Errorf("decode execution row: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return states, nil
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
