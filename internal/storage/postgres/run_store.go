package postgres

import (
	"context"
	"fmt"

	"solana-batch-trader/internal/storage"
)

// RunStore is a PostgreSQL implementation of storage.RunStore.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new PostgreSQL run store.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

var _ storage.RunStore = (*RunStore)(nil)

// Start records a new run.
func (s *RunStore) Start(ctx context.Context, r *storage.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO trade_runs (run_id, direction, wallets, tokens, started_at_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, r.RunID, r.Direction, r.Wallets, r.Tokens, r.StartedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish completes a run.
func (s *RunStore) Finish(ctx context.Context, runID string, finishedAt int64, reason string, entries int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE trade_runs
		SET finished_at_ms = $2, reason = $3, entries = $4
		WHERE run_id = $1
	`, runID, finishedAt, reason, entries)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*storage.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, direction, wallets, tokens, started_at_ms, finished_at_ms, reason, entries
		FROM trade_runs
		WHERE run_id = $1
	`, runID)

	var r storage.RunRecord
	err := row.Scan(&r.RunID, &r.Direction, &r.Wallets, &r.Tokens, &r.StartedAt, &r.FinishedAt, &r.Reason, &r.Entries)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// List returns runs ordered by start time DESC.
func (s *RunStore) List(ctx context.Context, limit int) ([]*storage.RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, direction, wallets, tokens, started_at_ms, finished_at_ms, reason, entries
		FROM trade_runs
		ORDER BY started_at_ms DESC, run_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		if err := rows.Scan(&r.RunID, &r.Direction, &r.Wallets, &r.Tokens, &r.StartedAt, &r.FinishedAt, &r.Reason, &r.Entries); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}
