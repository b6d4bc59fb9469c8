package storage

import (
	"context"

	"solana-batch-trader/internal/domain"
)

// entryInserter is satisfied by TradeLogStore and VolumeStore.
type entryInserter interface {
	Insert(ctx context.Context, e *domain.TradeLogEntry) error
}

// Sink adapts a store to the feed's sink interface.
type Sink struct {
	name  string
	store entryInserter
}

// NewTradeLogSink forwards feed entries to a TradeLogStore.
func NewTradeLogSink(name string, store TradeLogStore) *Sink {
	return &Sink{name: name, store: store}
}

// NewVolumeSink forwards feed entries to a VolumeStore.
func NewVolumeSink(name string, store VolumeStore) *Sink {
	return &Sink{name: name, store: store}
}

// Name returns the sink name used in logs and metrics.
func (s *Sink) Name() string { return s.name }

// Write inserts a copy of the entry.
func (s *Sink) Write(ctx context.Context, entry domain.TradeLogEntry) error {
	return s.store.Insert(ctx, &entry)
}
