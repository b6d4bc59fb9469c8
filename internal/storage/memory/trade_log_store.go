package memory

import (
	"context"
	"sort"
	"sync"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/idhash"
	"solana-batch-trader/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeLogEntry // keyed by entry key
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{
		data: make(map[string]*domain.TradeLogEntry),
	}
}

// Insert adds an entry. Returns ErrDuplicateKey if the key exists.
func (s *TradeLogStore) Insert(_ context.Context, e *domain.TradeLogEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}
	key := idhash.ComputeEntryKey(e.RunID, e.Sequence)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[key] = &copy
	return nil
}

// GetByKey retrieves an entry by its key. Returns ErrNotFound if not exists.
func (s *TradeLogStore) GetByKey(_ context.Context, key string) (*domain.TradeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *e
	return &copy, nil
}

// GetByRunID retrieves all entries of a run, ordered by sequence ASC.
func (s *TradeLogStore) GetByRunID(_ context.Context, runID string) ([]*domain.TradeLogEntry, error) {
	result := s.filter(func(e *domain.TradeLogEntry) bool { return e.RunID == runID })
	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}

// GetByWallet retrieves all entries for a wallet, ordered by timestamp ASC.
func (s *TradeLogStore) GetByWallet(_ context.Context, walletAddress string) ([]*domain.TradeLogEntry, error) {
	result := s.filter(func(e *domain.TradeLogEntry) bool { return e.WalletAddress == walletAddress })
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result, nil
}

func (s *TradeLogStore) filter(match func(*domain.TradeLogEntry) bool) []*domain.TradeLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeLogEntry
	for _, e := range s.data {
		if match(e) {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result
}

var _ storage.TradeLogStore = (*TradeLogStore)(nil)
