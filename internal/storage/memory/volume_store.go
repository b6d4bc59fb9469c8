package memory

import (
	"context"
	"sort"
	"sync"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/idhash"
	"solana-batch-trader/internal/storage"
)

// VolumeStore is an in-memory implementation of storage.VolumeStore.
type VolumeStore struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	rows []domain.TradeLogEntry
}

// NewVolumeStore creates a new in-memory volume store.
func NewVolumeStore() *VolumeStore {
	return &VolumeStore{
		seen: make(map[string]struct{}),
	}
}

// Insert records one entry. Returns ErrDuplicateKey if the key exists.
func (s *VolumeStore) Insert(_ context.Context, e *domain.TradeLogEntry) error {
	if err := storage.ValidateEntry(e); err != nil {
		return err
	}
	key := idhash.ComputeEntryKey(e.RunID, e.Sequence)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.seen[key] = struct{}{}
	s.rows = append(s.rows, *e)
	return nil
}

// VolumeByToken returns successful volume per token and direction for a run.
func (s *VolumeStore) VolumeByToken(_ context.Context, runID string) ([]storage.TokenVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		token     string
		direction domain.Direction
	}
	agg := make(map[key]*storage.TokenVolume)
	for _, e := range s.rows {
		if e.RunID != runID || !e.Succeeded() {
			continue
		}
		k := key{e.TokenAddress, e.Direction}
		v, ok := agg[k]
		if !ok {
			v = &storage.TokenVolume{RunID: runID, TokenAddress: e.TokenAddress, Direction: e.Direction}
			agg[k] = v
		}
		v.Trades++
		v.Volume += e.Amount
	}

	result := make([]storage.TokenVolume, 0, len(agg))
	for _, v := range agg {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TokenAddress != result[j].TokenAddress {
			return result[i].TokenAddress < result[j].TokenAddress
		}
		return result[i].Direction < result[j].Direction
	})
	return result, nil
}

var _ storage.VolumeStore = (*VolumeStore)(nil)
