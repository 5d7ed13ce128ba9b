package core

import "time"

// Store defines the interface for run-history state management.
// The store is advisory: recording failures must never fail a run.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(searchRoot string, files []string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	// Target run operations
	RecordTargetRun(tr *TargetRun) error
	UpdateTargetRun(id string, status TargetRunStatus, errMsg string, durationMS int64) error
	GetTargetRunsForRun(runID string) ([]*TargetRun, error)
}

// RunStatus represents the status of a generation run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one generation run across all configured targets.
type Run struct {
	ID          string
	SearchRoot  string
	Files       []string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// TargetRunStatus represents the status of one target within a run.
type TargetRunStatus string

// Target run status constants.
const (
	TargetRunStatusPending   TargetRunStatus = "pending"
	TargetRunStatusRunning   TargetRunStatus = "running"
	TargetRunStatusPublished TargetRunStatus = "published"
	TargetRunStatusFailed    TargetRunStatus = "failed"
	TargetRunStatusSkipped   TargetRunStatus = "skipped"
)

// TargetRun represents the compile + publish cycle for one target.
type TargetRun struct {
	ID         string
	RunID      string
	Target     string
	Plugin     string
	Status     TargetRunStatus
	Error      string
	DurationMS int64
}
