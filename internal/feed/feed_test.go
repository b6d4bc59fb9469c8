package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-batch-trader/internal/domain"
)

type recordingSink struct {
	mu      sync.Mutex
	name    string
	err     error
	entries []domain.TradeLogEntry
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, e domain.TradeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

type fakeWallets struct {
	wallets []*domain.Wallet
	tokens  int
}

func (f fakeWallets) Wallets() []*domain.Wallet { return f.wallets }
func (f fakeWallets) TokenCount() int           { return f.tokens }

type fakeBalances map[string]uint64

func (f fakeBalances) NativeBalance(_ context.Context, address string) (uint64, error) {
	if v, ok := f[address]; ok {
		return v, nil
	}
	return 0, errors.New("rpc down")
}

func entry(id string, status domain.Status, amount float64) domain.TradeLogEntry {
	return domain.TradeLogEntry{ID: id, Status: status, Amount: amount, Direction: domain.DirectionBuy}
}

func TestFeed_AppendPreservesOrder(t *testing.T) {
	f := New(Options{})

	for i := 0; i < 5; i++ {
		f.Append(entry(fmt.Sprintf("e%d", i), domain.StatusSuccess, 1))
	}
	// Duplicates are kept
	f.Append(entry("e0", domain.StatusSuccess, 1))

	got := f.Entries()
	require.Len(t, got, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("e%d", i), got[i].ID)
	}
	assert.Equal(t, "e0", got[5].ID)
}

func TestFeed_EntriesReturnsCopy(t *testing.T) {
	f := New(Options{})
	f.Append(entry("a", domain.StatusSuccess, 1))

	got := f.Entries()
	got[0].ID = "mutated"

	assert.Equal(t, "a", f.Entries()[0].ID)
}

func TestFeed_Stats(t *testing.T) {
	f := New(Options{})
	assert.Equal(t, domain.TradeStats{}, f.Stats())

	f.Append(entry("1", domain.StatusSuccess, 0.1))
	f.Append(entry("2", domain.StatusSuccess, 0.2))
	f.Append(entry("3", domain.StatusFailed, 0.3))
	f.Append(entry("4", domain.StatusPending, 0.4))

	stats := f.Stats()
	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 2, stats.SuccessfulTrades)
	assert.Equal(t, 1, stats.FailedTrades)
	assert.Equal(t, 1, stats.PendingTrades)
	assert.Equal(t, 50.0, stats.SuccessRate)
	assert.Equal(t, 1.0, stats.TotalVolume)
}

func TestFeed_Clear(t *testing.T) {
	f := New(Options{})
	f.Append(entry("1", domain.StatusSuccess, 1))
	f.SetConfirmation(Confirmation{Signature: "1", Confirmed: true})

	f.Clear()

	assert.Zero(t, f.Len())
	_, ok := f.Confirmation("1")
	assert.False(t, ok)
	assert.Zero(t, f.Stats().TotalTrades)
}

func TestFeed_SinksReceiveEntriesAndErrorsAreIsolated(t *testing.T) {
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: errors.New("connection refused")}

	f := New(Options{Sinks: []Sink{bad, good}})
	f.Append(entry("1", domain.StatusSuccess, 1))
	f.Append(entry("2", domain.StatusFailed, 1))

	require.Len(t, good.entries, 2)
	assert.Equal(t, "1", good.entries[0].ID)
	assert.Equal(t, "2", good.entries[1].ID)
	assert.Equal(t, 2, f.Len(), "sink failure must not affect the log")
}

func TestFeed_GetStatus(t *testing.T) {
	w1 := domain.NewWallet(solana.NewWallet().PrivateKey)
	w2 := domain.NewWallet(solana.NewWallet().PrivateKey)

	f := New(Options{Wallets: fakeWallets{wallets: []*domain.Wallet{w1, w2}, tokens: 3}})
	f.SetRunState(true, 1, "run-1")
	f.Append(entry("1", domain.StatusSuccess, 1))

	snap := f.GetStatus()
	assert.True(t, snap.IsTrading)
	assert.Equal(t, 2, snap.WalletCount)
	assert.Equal(t, 3, snap.TokenCount)
	assert.Equal(t, 1, snap.WorkingIndex)
	assert.Equal(t, "run-1", snap.RunID)
	require.Len(t, snap.Wallets, 2)
	assert.Equal(t, w1.Display(), snap.Wallets[0].Address)
	assert.Nil(t, snap.Wallets[0].Balance, "cheap snapshot carries no balances")
	assert.Equal(t, 1, snap.Stats.TotalTrades)
}

func TestFeed_GetRealtimeStatus(t *testing.T) {
	w1 := domain.NewWallet(solana.NewWallet().PrivateKey)
	w2 := domain.NewWallet(solana.NewWallet().PrivateKey)

	f := New(Options{
		Wallets:  fakeWallets{wallets: []*domain.Wallet{w1, w2}, tokens: 1},
		Balances: fakeBalances{w1.PublicAddress: 2_000_000_000},
	})

	snap := f.GetRealtimeStatus(context.Background())
	require.Len(t, snap.Wallets, 2)
	require.NotNil(t, snap.Wallets[0].Balance)
	assert.Equal(t, 2.0, *snap.Wallets[0].Balance)
	assert.Nil(t, snap.Wallets[1].Balance, "failed fetch leaves balance unset")
}

func TestFeed_ConfirmedCount(t *testing.T) {
	f := New(Options{})
	f.SetConfirmation(Confirmation{Signature: "a", Confirmed: true})
	f.SetConfirmation(Confirmation{Signature: "b", Confirmed: false, Err: "InstructionError"})

	assert.Equal(t, 1, f.GetStatus().Confirmed)

	c, ok := f.Confirmation("b")
	require.True(t, ok)
	assert.Equal(t, "InstructionError", c.Err)
}
