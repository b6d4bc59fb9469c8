package storage

import (
	"context"

	"solana-batch-trader/internal/domain"
)

// TradeLogStore persists trade log entries. Entries are keyed by
// idhash.ComputeEntryKey(RunID, Sequence) and never updated.
type TradeLogStore interface {
	// Insert adds an entry. Returns ErrDuplicateKey if the key exists,
	// ErrInvalidInput if the entry has no run bookkeeping.
	Insert(ctx context.Context, e *domain.TradeLogEntry) error

	// GetByKey retrieves an entry by its key. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, key string) (*domain.TradeLogEntry, error)

	// GetByRunID retrieves all entries of a run, ordered by sequence ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeLogEntry, error)

	// GetByWallet retrieves all entries for a wallet address, ordered by timestamp ASC.
	GetByWallet(ctx context.Context, walletAddress string) ([]*domain.TradeLogEntry, error)
}

// TokenVolume aggregates successful volume for one token within a run.
type TokenVolume struct {
	RunID        string
	TokenAddress string
	Direction    domain.Direction
	Trades       int
	Volume       float64
}

// VolumeStore records trade volume for analytics.
type VolumeStore interface {
	// Insert records one entry. Failed entries are stored with their amount
	// but excluded from VolumeByToken.
	Insert(ctx context.Context, e *domain.TradeLogEntry) error

	// VolumeByToken returns successful volume per token for a run, ordered by token address.
	VolumeByToken(ctx context.Context, runID string) ([]TokenVolume, error)
}
