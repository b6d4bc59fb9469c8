// Package feed holds the observable trading state: the ordered trade log,
// statistics derived from it, and status snapshots.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/observability"
	"solana-batch-trader/internal/oracle"
)

// DefaultSinkTimeout bounds a single sink write.
const DefaultSinkTimeout = 5 * time.Second

// Sink receives every appended entry. Errors are logged and never affect the feed.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry domain.TradeLogEntry) error
}

// WalletSource provides the current working set for status snapshots.
type WalletSource interface {
	Wallets() []*domain.Wallet
	TokenCount() int
}

// BalanceSource fetches native balances for realtime status.
type BalanceSource interface {
	NativeBalance(ctx context.Context, address string) (uint64, error)
}

// Confirmation is the on-chain outcome of a submitted transaction.
type Confirmation struct {
	Signature string `json:"signature"`
	Slot      int64  `json:"slot"`
	Confirmed bool   `json:"confirmed"`
	Err       string `json:"error,omitempty"`
}

// Options configures a Feed.
type Options struct {
	Wallets     WalletSource
	Balances    BalanceSource
	Sinks       []Sink
	SinkTimeout time.Duration
	Logger      zerolog.Logger
}

// Feed is the process-wide observable trading state.
type Feed struct {
	mu            sync.RWMutex
	entries       []domain.TradeLogEntry
	confirmations map[string]Confirmation
	run           runState

	wallets     WalletSource
	balances    BalanceSource
	sinks       []Sink
	sinkTimeout time.Duration
	log         zerolog.Logger
}

type runState struct {
	isTrading    bool
	workingIndex int
	runID        string
}

// New creates a Feed.
func New(opts Options) *Feed {
	timeout := opts.SinkTimeout
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	return &Feed{
		confirmations: make(map[string]Confirmation),
		wallets:       opts.Wallets,
		balances:      opts.Balances,
		sinks:         opts.Sinks,
		sinkTimeout:   timeout,
		log:           opts.Logger.With().Str("component", "feed").Logger(),
	}
}

// AddSink registers a sink for subsequent appends.
func (f *Feed) AddSink(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Append adds entry to the end of the log and forwards it to every sink.
// Entries are never reordered or deduplicated.
func (f *Feed) Append(entry domain.TradeLogEntry) {
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	sinks := f.sinks
	f.mu.Unlock()

	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), f.sinkTimeout)
		err := s.Write(ctx, entry)
		cancel()

		observability.RecordSinkWrite(s.Name(), err)
		if err != nil {
			f.log.Warn().Err(err).Str("sink", s.Name()).Str("entry", entry.ID).Msg("sink write failed")
		}
	}
}

// Entries returns a copy of the log in insertion order.
func (f *Feed) Entries() []domain.TradeLogEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.TradeLogEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of logged entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Clear empties the log and the confirmation table.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	f.confirmations = make(map[string]Confirmation)
}

// Stats derives aggregate statistics from the log.
func (f *Feed) Stats() domain.TradeStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ComputeStats(f.entries)
}

// ComputeStats derives statistics from entries. Volume sums every entry's amount.
func ComputeStats(entries []domain.TradeLogEntry) domain.TradeStats {
	var stats domain.TradeStats
	volume := decimal.Zero

	for _, e := range entries {
		stats.TotalTrades++
		switch e.Status {
		case domain.StatusSuccess:
			stats.SuccessfulTrades++
		case domain.StatusFailed:
			stats.FailedTrades++
		case domain.StatusPending:
			stats.PendingTrades++
		}
		volume = volume.Add(decimal.NewFromFloat(e.Amount))
	}

	if stats.TotalTrades > 0 {
		stats.SuccessRate = float64(stats.SuccessfulTrades) / float64(stats.TotalTrades) * 100
	}
	stats.TotalVolume = volume.InexactFloat64()
	return stats
}

// SetConfirmation records the on-chain outcome of a signature.
func (f *Feed) SetConfirmation(c Confirmation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations[c.Signature] = c
}

// Confirmation returns the recorded outcome of signature, if any.
func (f *Feed) Confirmation(signature string) (Confirmation, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.confirmations[signature]
	return c, ok
}

// SetRunState publishes the coordinator's run state.
func (f *Feed) SetRunState(isTrading bool, workingIndex int, runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.run = runState{isTrading: isTrading, workingIndex: workingIndex, runID: runID}
}

// GetStatus returns a cheap point-in-time snapshot without network calls.
func (f *Feed) GetStatus() domain.StatusSnapshot {
	snap := f.baseSnapshot()
	if f.wallets != nil {
		for _, w := range f.wallets.Wallets() {
			snap.Wallets = append(snap.Wallets, summarize(w))
		}
	}
	return snap
}

// GetRealtimeStatus returns a snapshot with a freshly fetched SOL balance per wallet.
// Wallets whose balance cannot be fetched are reported without one.
func (f *Feed) GetRealtimeStatus(ctx context.Context) domain.StatusSnapshot {
	snap := f.baseSnapshot()
	if f.wallets == nil {
		return snap
	}

	for _, w := range f.wallets.Wallets() {
		summary := summarize(w)
		if f.balances != nil {
			lamports, err := f.balances.NativeBalance(ctx, w.PublicAddress)
			if err != nil {
				f.log.Debug().Err(err).Str("wallet", w.Display()).Msg("balance fetch failed")
			} else {
				sol := oracle.LamportsToSOL(lamports).InexactFloat64()
				summary.Balance = &sol
			}
		}
		snap.Wallets = append(snap.Wallets, summary)
	}
	return snap
}

func (f *Feed) baseSnapshot() domain.StatusSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := domain.StatusSnapshot{
		IsTrading:    f.run.isTrading,
		WorkingIndex: f.run.workingIndex,
		RunID:        f.run.runID,
		Stats:        ComputeStats(f.entries),
		Wallets:      []domain.WalletSummary{},
	}
	for _, c := range f.confirmations {
		if c.Confirmed {
			snap.Confirmed++
		}
	}
	if f.wallets != nil {
		snap.WalletCount = len(f.wallets.Wallets())
		snap.TokenCount = f.wallets.TokenCount()
	}
	return snap
}

func summarize(w *domain.Wallet) domain.WalletSummary {
	return domain.WalletSummary{
		Address:          w.Display(),
		CumulativeVolume: w.CumulativeVolume().InexactFloat64(),
	}
}
