// Package state provides run-history persistence using SQLite.
// It records generation runs and the per-target compile + publish outcomes.
package state

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/matchday-labs/protodrive/pkg/core"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema initializes the database schema.
func (s *SQLiteStore) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

// --- Run operations ---

// CreateRun records the start of a generation run.
func (s *SQLiteStore) CreateRun(searchRoot string, files []string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:         generateID(),
		SearchRoot: searchRoot,
		Files:      files,
		Status:     core.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	encoded, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file list: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (id, search_root, files, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SearchRoot, string(encoded), run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, search_root, files, status, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, search_root, files, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.Run, error) {
	run := &core.Run{}
	var files string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &run.SearchRoot, &files, &run.Status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &run.Files); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// --- Target run operations ---

// RecordTargetRun inserts a target run, assigning it an ID.
func (s *SQLiteStore) RecordTargetRun(tr *core.TargetRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if tr.ID == "" {
		tr.ID = generateID()
	}
	if tr.Status == "" {
		tr.Status = core.TargetRunStatusPending
	}

	_, err := s.db.Exec(
		`INSERT INTO target_runs (id, run_id, target, plugin, status, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.RunID, tr.Target, tr.Plugin, tr.Status, tr.Error, tr.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record target run: %w", err)
	}
	return nil
}

// UpdateTargetRun updates the status of a target run.
func (s *SQLiteStore) UpdateTargetRun(id string, status core.TargetRunStatus, errMsg string, durationMS int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE target_runs SET status = ?, error = ?, duration_ms = ? WHERE id = ?`,
		status, errMsg, durationMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update target run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("target run not found: %s", id)
	}
	return nil
}

// GetTargetRunsForRun returns the target runs of a run, target-ascending.
func (s *SQLiteStore) GetTargetRunsForRun(runID string) ([]*core.TargetRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, target, plugin, status, error, duration_ms
		 FROM target_runs WHERE run_id = ? ORDER BY target`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target runs: %w", err)
	}
	defer rows.Close()

	var trs []*core.TargetRun
	for rows.Next() {
		tr := &core.TargetRun{}
		var errMsg sql.NullString
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.Target, &tr.Plugin, &tr.Status, &errMsg, &tr.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan target run: %w", err)
		}
		if errMsg.Valid {
			tr.Error = errMsg.String
		}
		trs = append(trs, tr)
	}
	return trs, rows.Err()
}
