package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/idhash"
	"solana-batch-trader/internal/observability"
	"solana-batch-trader/internal/storage"
)

// VolumeStore implements storage.VolumeStore using ClickHouse.
// ReplacingMergeTree collapses re-sent rows with the same entry key.
type VolumeStore struct {
	conn *Conn
}

// NewVolumeStore creates a new VolumeStore.
func NewVolumeStore(conn *Conn) *VolumeStore {
	return &VolumeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VolumeStore = (*VolumeStore)(nil)

// Insert records one entry. Returns ErrDuplicateKey if the key is already stored.
func (s *VolumeStore) Insert(ctx context.Context, e *domain.TradeLogEntry) (err error) {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}
	defer func(start time.Time) {
		observability.RecordDBQuery("clickhouse", "insert_trade_volume", time.Since(start).Seconds(), err)
	}(time.Now())

	key := idhash.ComputeEntryKey(e.RunID, e.Sequence)

	exists, err := s.exists(ctx, e.RunID, key)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_volume (
			entry_key, run_id, sequence, timestamp_ms, wallet, token, direction, status, amount
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		key, e.RunID, uint32(e.Sequence), uint64(e.Timestamp), e.WalletAddress, e.TokenAddress,
		string(e.Direction), string(e.Status), e.Amount,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// VolumeByToken returns successful volume per token and direction for a run.
func (s *VolumeStore) VolumeByToken(ctx context.Context, runID string) ([]storage.TokenVolume, error) {
	query := `
		SELECT token, direction, count() AS trades, sum(amount) AS volume
		FROM trade_volume FINAL
		WHERE run_id = ? AND status = ?
		GROUP BY token, direction
		ORDER BY token ASC, direction ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, string(domain.StatusSuccess))
	if err != nil {
		return nil, fmt.Errorf("query volume by token: %w", err)
	}
	defer rows.Close()

	var result []storage.TokenVolume
	for rows.Next() {
		var (
			token, direction string
			trades           uint64
			volume           float64
		)
		if err := rows.Scan(&token, &direction, &trades, &volume); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		result = append(result, storage.TokenVolume{
			RunID:        runID,
			TokenAddress: token,
			Direction:    domain.Direction(direction),
			Trades:       int(trades),
			Volume:       volume,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume rows: %w", err)
	}
	return result, nil
}

func (s *VolumeStore) exists(ctx context.Context, runID, key string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM trade_volume WHERE run_id = ? AND entry_key = ?
	`, runID, key).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
