package memory

import (
	"context"
	"sort"
	"sync"

	"solana-batch-trader/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*storage.RunRecord
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*storage.RunRecord),
	}
}

// Start records a new run.
func (s *RunStore) Start(_ context.Context, r *storage.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *r
	s.runs[r.RunID] = &copy
	return nil
}

// Finish completes a run.
func (s *RunStore) Finish(_ context.Context, runID string, finishedAt int64, reason string, entries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.runs[runID]
	if !exists {
		return storage.ErrNotFound
	}
	r.FinishedAt = finishedAt
	r.Reason = reason
	r.Entries = entries
	return nil
}

// GetByID retrieves a run.
func (s *RunStore) GetByID(_ context.Context, runID string) (*storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// List returns runs ordered by start time DESC.
func (s *RunStore) List(_ context.Context, limit int) ([]*storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		copy := *r
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt > result[j].StartedAt
		}
		return result[i].RunID < result[j].RunID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.RunStore = (*RunStore)(nil)
