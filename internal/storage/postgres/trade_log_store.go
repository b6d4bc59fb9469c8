package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/idhash"
	"solana-batch-trader/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

const tradeLogColumns = `
	entry_key, run_id, sequence, entry_id, timestamp_ms,
	wallet_address, token_address, tx_hash, status, amount, direction, error`

// Insert adds an entry. Returns ErrDuplicateKey if the key exists.
func (s *TradeLogStore) Insert(ctx context.Context, e *domain.TradeLogEntry) (err error) {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}
	defer func(start time.Time) { observe("insert_trade_log", start, err) }(time.Now())

	query := `INSERT INTO trade_log (` + tradeLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.pool.Exec(ctx, query,
		idhash.ComputeEntryKey(e.RunID, e.Sequence), e.RunID, e.Sequence, e.ID, e.Timestamp,
		e.WalletAddress, e.TokenAddress, e.TransactionHash, string(e.Status), e.Amount, string(e.Direction), e.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade log entry: %w", err)
	}
	return nil
}

// GetByKey retrieves an entry by its key. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByKey(ctx context.Context, key string) (*domain.TradeLogEntry, error) {
	query := `SELECT ` + tradeLogColumns + ` FROM trade_log WHERE entry_key = $1`

	e, err := scanEntry(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade log entry by key: %w", err)
	}
	return e, nil
}

// GetByRunID retrieves all entries of a run, ordered by sequence ASC.
func (s *TradeLogStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeLogEntry, error) {
	query := `SELECT ` + tradeLogColumns + ` FROM trade_log WHERE run_id = $1 ORDER BY sequence ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade log by run id: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByWallet retrieves all entries for a wallet, ordered by timestamp ASC.
func (s *TradeLogStore) GetByWallet(ctx context.Context, walletAddress string) ([]*domain.TradeLogEntry, error) {
	query := `SELECT ` + tradeLogColumns + ` FROM trade_log
		WHERE wallet_address = $1 ORDER BY timestamp_ms ASC, sequence ASC`

	rows, err := s.pool.Query(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("get trade log by wallet: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// scanEntry scans a single row into a TradeLogEntry and fills the display fields.
func scanEntry(row pgx.Row) (*domain.TradeLogEntry, error) {
	var (
		e         domain.TradeLogEntry
		key       string
		status    string
		direction string
	)
	err := row.Scan(
		&key, &e.RunID, &e.Sequence, &e.ID, &e.Timestamp,
		&e.WalletAddress, &e.TokenAddress, &e.TransactionHash, &status, &e.Amount, &direction, &e.Error,
	)
	if err != nil {
		return nil, err
	}

	e.Status = domain.Status(status)
	e.Direction = domain.Direction(direction)
	e.WalletAddressDisplay = domain.DisplayAddress(e.WalletAddress)
	e.TokenAddressDisplay = domain.DisplayAddress(e.TokenAddress)
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*domain.TradeLogEntry, error) {
	var entries []*domain.TradeLogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade log rows: %w", err)
	}
	return entries, nil
}
