package storage

import "context"

// RunRecord is the persisted summary of one trading run.
type RunRecord struct {
	RunID      string
	Direction  string
	Wallets    int
	Tokens     int
	StartedAt  int64 // Unix milliseconds
	FinishedAt int64 // Unix milliseconds, zero while running
	Reason     string
	Entries    int
}

// RunStore persists run summaries so past runs can be listed after restarts.
type RunStore interface {
	// Start records a new run. Returns ErrDuplicateKey if the run exists.
	Start(ctx context.Context, r *RunRecord) error

	// Finish sets the finish time, reason and entry count. Returns ErrNotFound if the run does not exist.
	Finish(ctx context.Context, runID string, finishedAt int64, reason string, entries int) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*RunRecord, error)

	// List returns runs ordered by start time DESC, at most limit rows.
	List(ctx context.Context, limit int) ([]*RunRecord, error)
}
