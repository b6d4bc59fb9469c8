package storage

import (
	"errors"

	"solana-batch-trader/internal/domain"
)

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Append-only stores do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateEntry checks that an entry carries the run bookkeeping used for its key.
func ValidateEntry(e *domain.TradeLogEntry) error {
	if e == nil || e.RunID == "" || e.Sequence < 1 {
		return ErrInvalidInput
	}
	return nil
}
