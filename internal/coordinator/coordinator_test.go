package coordinator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/oracle"
	"solana-batch-trader/internal/signer"
	"solana-batch-trader/internal/swap"
)

// fakeSwap quotes and builds everything unless told otherwise.
type fakeSwap struct {
	mu        sync.Mutex
	requests  []swap.QuoteRequest
	noRoute   map[string]bool // output or input mint -> no route
	buildFail bool

	// hold blocks the next Quote until closed; held is signalled on entry.
	hold chan struct{}
	held chan struct{}
	// hang blocks every Quote until its context ends.
	hang bool
}

func (f *fakeSwap) Quote(ctx context.Context, req swap.QuoteRequest) swap.QuoteResult {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hold, held, hang := f.hold, f.held, f.hang
	f.hold = nil
	noRoute := f.noRoute[req.OutputMint] || f.noRoute[req.InputMint]
	f.mu.Unlock()

	if hold != nil {
		held <- struct{}{}
		<-hold
	}
	if hang {
		<-ctx.Done()
		return swap.QuoteResult{NoRoute: ctx.Err().Error()}
	}
	if noRoute {
		return swap.QuoteResult{NoRoute: "empty route"}
	}
	return swap.QuoteResult{Quote: &swap.Quote{InputMint: req.InputMint, OutputMint: req.OutputMint, InAmount: req.Amount, RouteID: "amm"}}
}

func (f *fakeSwap) Build(_ context.Context, q *swap.Quote, wallet string) swap.BuildResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildFail {
		return swap.BuildResult{Failed: "stale quote"}
	}
	return swap.BuildResult{Tx: swap.UnsignedTransaction("tx:" + wallet + ":" + q.OutputMint)}
}

func (f *fakeSwap) Requests() []swap.QuoteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]swap.QuoteRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// fakeSubmitter returns sequential signatures.
type fakeSubmitter struct {
	mu   sync.Mutex
	n    int
	fail bool
}

func (f *fakeSubmitter) SignAndSubmit(_ context.Context, _ swap.UnsignedTransaction, _ *domain.Wallet) signer.SubmitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return signer.SubmitResult{Failed: "blockhash not found"}
	}
	f.n++
	return signer.SubmitResult{Signature: "sig" + strconv.Itoa(f.n)}
}

// fakeOracle serves fixed balances and price.
type fakeOracle struct {
	lamports   uint64
	tokens     oracle.TokenAmount
	price      float64
	balanceErr error
}

func (f *fakeOracle) NativeBalance(context.Context, string) (uint64, error) {
	return f.lamports, f.balanceErr
}

func (f *fakeOracle) TokenBalance(context.Context, string, string) (oracle.TokenAmount, error) {
	return f.tokens, f.balanceErr
}

func (f *fakeOracle) NativeAssetFiatPrice(context.Context) float64 {
	return f.price
}

// instantPacer never waits.
type instantPacer struct{}

func (instantPacer) Pace(ctx context.Context) error { return ctx.Err() }

// gatePacer signals each Pace call and blocks until released or stopped.
type gatePacer struct {
	entered chan struct{}
	release chan struct{}
}

func newGatePacer() *gatePacer {
	return &gatePacer{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (p *gatePacer) Pace(ctx context.Context) error {
	p.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

type fixture struct {
	c       *Coordinator
	swap    *fakeSwap
	sub     *fakeSubmitter
	oracle  *fakeOracle
	wallets []string // public addresses in import order
	tokens  []string
}

func newFixture(t *testing.T, nWallets, nTokens int, pacer Pacer) *fixture {
	t.Helper()

	f := &fixture{
		swap:   &fakeSwap{noRoute: map[string]bool{}},
		sub:    &fakeSubmitter{},
		oracle: &fakeOracle{lamports: 2_000_000_000, tokens: oracle.TokenAmount{Amount: 1000, Decimals: 2}, price: 100},
	}
	f.c = New(Options{
		Swap:      f.swap,
		Submitter: f.sub,
		Oracle:    f.oracle,
		Pacer:     pacer,
		Amount:    50,
		Slippage:  1.5,
	})

	var keys []string
	for i := 0; i < nWallets; i++ {
		w := solana.NewWallet()
		keys = append(keys, w.PrivateKey.String())
		f.wallets = append(f.wallets, w.PublicKey().String())
	}
	for i := 0; i < nTokens; i++ {
		f.tokens = append(f.tokens, solana.NewWallet().PublicKey().String())
	}

	res := f.c.ImportWallets(strings.Join(keys, "\n"))
	require.Equal(t, nWallets, res.Success)
	res = f.c.ImportTokens(strings.Join(f.tokens, "\n"))
	require.Equal(t, nTokens, res.Success)
	return f
}

func waitDone(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestCoordinator_RunProducesEntryPerPair(t *testing.T) {
	f := newFixture(t, 3, 2, instantPacer{})

	var mu sync.Mutex
	var seen []domain.TradeLogEntry
	ok := f.c.StartTrading(domain.DirectionBuy, func(e domain.TradeLogEntry) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	require.True(t, ok)
	waitDone(t, f.c)

	entries := f.c.Entries()
	require.Len(t, entries, 6)

	mu.Lock()
	assert.Equal(t, entries, seen, "callback order matches log order")
	mu.Unlock()

	for i, e := range entries {
		wallet := f.wallets[i/2]
		token := f.tokens[i%2]
		assert.Equal(t, wallet[:8]+"...", e.WalletAddressDisplay)
		assert.Equal(t, token[:8]+"...", e.TokenAddressDisplay)
		assert.Equal(t, domain.StatusSuccess, e.Status)
		assert.Equal(t, e.ID, e.TransactionHash)
		assert.Equal(t, domain.DirectionBuy, e.Direction)
		assert.Equal(t, i+1, e.Sequence)
	}

	state := f.c.State()
	assert.False(t, state.IsTrading)
	assert.Zero(t, state.WorkingIndex)
	assert.False(t, f.c.GetStatus().IsTrading)
}

func TestCoordinator_BuyPercentSizing(t *testing.T) {
	f := newFixture(t, 1, 1, instantPacer{})

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)

	reqs := f.swap.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "So11111111111111111111111111111111111111112", reqs[0].InputMint)
	assert.Equal(t, f.tokens[0], reqs[0].OutputMint)
	assert.Equal(t, uint64(1_000_000_000), reqs[0].Amount, "50% of 2 SOL")
	assert.Equal(t, 150, reqs[0].SlippageBps)
	assert.Equal(t, swap.ExactIn, reqs[0].SwapMode)

	entries := f.c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 1.0, entries[0].Amount)
}

func TestCoordinator_SellPercentSizing(t *testing.T) {
	f := newFixture(t, 1, 1, instantPacer{})

	require.True(t, f.c.StartTrading(domain.DirectionSell, nil))
	waitDone(t, f.c)

	reqs := f.swap.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, f.tokens[0], reqs[0].InputMint)
	assert.Equal(t, uint64(500), reqs[0].Amount)

	entries := f.c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 5.0, entries[0].Amount, "500 raw at 2 decimals")
	assert.Equal(t, domain.DirectionSell, entries[0].Direction)
}

func TestCoordinator_FiatModeConvertsOnceWithBuffer(t *testing.T) {
	f := newFixture(t, 2, 1, instantPacer{})
	require.NoError(t, f.c.SetAmountMode(domain.AmountModeFiat))
	f.c.SetAmount(100)

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)

	reqs := f.swap.Requests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, uint64(1_050_000_000), r.Amount, "100 * 1.05 / 100 SOL")
	}

	for _, e := range f.c.Entries() {
		assert.Equal(t, 1.05, e.Amount)
	}
}

func TestCoordinator_FiatModeSellUsesExactOut(t *testing.T) {
	f := newFixture(t, 1, 1, instantPacer{})
	require.NoError(t, f.c.SetAmountMode(domain.AmountModeFiat))
	f.c.SetAmount(100)

	require.True(t, f.c.StartTrading(domain.DirectionSell, nil))
	waitDone(t, f.c)

	reqs := f.swap.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, swap.ExactOut, reqs[0].SwapMode)
	assert.Equal(t, uint64(1_050_000_000), reqs[0].Amount)
}

func TestCoordinator_FiatModeRejectedWithoutPrice(t *testing.T) {
	f := newFixture(t, 1, 1, instantPacer{})
	f.oracle.price = oracle.PriceUnavailable
	require.NoError(t, f.c.SetAmountMode(domain.AmountModeFiat))

	assert.False(t, f.c.StartTrading(domain.DirectionBuy, nil))
	assert.Empty(t, f.c.Entries())
	assert.False(t, f.c.IsTrading())
}

func TestCoordinator_StartRejectedOnEmptySets(t *testing.T) {
	t.Run("no wallets", func(t *testing.T) {
		f := newFixture(t, 0, 2, instantPacer{})
		assert.False(t, f.c.StartTrading(domain.DirectionBuy, nil))
		assert.Empty(t, f.c.Entries())
	})

	t.Run("no tokens", func(t *testing.T) {
		f := newFixture(t, 2, 0, instantPacer{})
		assert.False(t, f.c.StartTrading(domain.DirectionBuy, nil))
		assert.Empty(t, f.c.Entries())
	})

	t.Run("invalid direction", func(t *testing.T) {
		f := newFixture(t, 1, 1, instantPacer{})
		assert.False(t, f.c.StartTrading(domain.Direction("hold"), nil))
	})
}

func TestCoordinator_StartRejectedWhileRunning(t *testing.T) {
	pacer := newGatePacer()
	f := newFixture(t, 2, 1, pacer)

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	<-pacer.entered

	assert.False(t, f.c.StartTrading(domain.DirectionBuy, nil))

	close(pacer.release)
	waitDone(t, f.c)
	assert.Len(t, f.c.Entries(), 2)
}

func TestCoordinator_EarlyStop(t *testing.T) {
	pacer := newGatePacer()
	f := newFixture(t, 4, 3, pacer)

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))

	// First wallet done, loop is pacing.
	select {
	case <-pacer.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never paced")
	}

	f.c.StopTrading()
	waitDone(t, f.c)

	entries := f.c.Entries()
	assert.Len(t, entries, 3, "only the first wallet's tokens were attempted")

	state := f.c.State()
	assert.False(t, state.IsTrading)
	assert.Zero(t, state.WorkingIndex)

	// No entries after stop returned.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.c.Entries(), 3)

	// A new run starts from the first wallet.
	close(pacer.release)
	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)
	assert.Len(t, f.c.Entries(), 3+12)
}

func TestCoordinator_FailureFallbackFields(t *testing.T) {
	f := newFixture(t, 1, 2, instantPacer{})
	f.swap.noRoute[f.tokens[0]] = true

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)

	entries := f.c.Entries()
	require.Len(t, entries, 2, "a failed token does not abort the wallet")

	failed := entries[0]
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "NONE", failed.TransactionHash)
	assert.NotEmpty(t, failed.ID)
	_, err := strconv.ParseInt(failed.ID, 10, 64)
	assert.NoError(t, err, "synthetic id is a unix-millis timestamp")
	assert.Contains(t, failed.Error, "quote")

	assert.Equal(t, domain.StatusSuccess, entries[1].Status)
}

func TestCoordinator_FailureAtEveryStage(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fixture)
		stage  string
		quotes int
	}{
		{"balance error", func(f *fixture) { f.oracle.balanceErr = errors.New("rpc timeout") }, "balance", 0},
		{"zero balance", func(f *fixture) { f.oracle.lamports = 0 }, "amount", 0},
		{"build failure", func(f *fixture) { f.swap.buildFail = true }, "build", 1},
		{"submit failure", func(f *fixture) { f.sub.fail = true }, "submit", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1, 1, instantPacer{})
			tt.setup(f)

			require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
			waitDone(t, f.c)

			entries := f.c.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, domain.StatusFailed, entries[0].Status)
			assert.Equal(t, "NONE", entries[0].TransactionHash)
			assert.True(t, strings.HasPrefix(entries[0].Error, tt.stage+":"), "error %q", entries[0].Error)
			assert.Len(t, f.swap.Requests(), tt.quotes)
		})
	}
}

func TestCoordinator_ZeroTokenBalanceSell(t *testing.T) {
	f := newFixture(t, 1, 1, instantPacer{})
	f.oracle.tokens = oracle.TokenAmount{}

	require.True(t, f.c.StartTrading(domain.DirectionSell, nil))
	waitDone(t, f.c)

	entries := f.c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.StatusFailed, entries[0].Status)
	assert.Empty(t, f.swap.Requests())
}

func TestCoordinator_SnapshotIgnoresRegistryMutation(t *testing.T) {
	pacer := newGatePacer()
	f := newFixture(t, 2, 2, pacer)

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	<-pacer.entered

	// Mutate the registry mid-run.
	f.c.ImportTokens(solana.NewWallet().PublicKey().String())
	f.c.ImportWallets("")

	close(pacer.release)
	waitDone(t, f.c)

	entries := f.c.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, f.wallets[1][:8]+"...", entries[3].WalletAddressDisplay)
	assert.Equal(t, f.tokens[1][:8]+"...", entries[3].TokenAddressDisplay)
}

func TestCoordinator_CumulativeVolume(t *testing.T) {
	f := newFixture(t, 1, 3, instantPacer{})
	f.swap.noRoute[f.tokens[1]] = true

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)

	status := f.c.GetStatus()
	require.Len(t, status.Wallets, 1)
	assert.Equal(t, 2.0, status.Wallets[0].CumulativeVolume, "two successful 1 SOL buys")

	stats := f.c.Stats()
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.SuccessfulTrades)
	assert.Equal(t, 1, stats.FailedTrades)
}

func TestCoordinator_ResetAndDestroy(t *testing.T) {
	f := newFixture(t, 1, 1, instantPacer{})

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)
	require.Len(t, f.c.Entries(), 1)

	f.c.Reset()
	assert.Empty(t, f.c.Entries())
	assert.Zero(t, f.c.GetStatus().WalletCount)
	assert.False(t, f.c.StartTrading(domain.DirectionBuy, nil), "sets are empty after reset")

	f.c.ImportWallets(solana.NewWallet().PrivateKey.String())
	f.c.ImportTokens(solana.NewWallet().PublicKey().String())
	f.c.Destroy()
	assert.Zero(t, f.c.GetStatus().TokenCount)

	f.c.ImportWallets(solana.NewWallet().PrivateKey.String())
	f.c.ImportTokens(solana.NewWallet().PublicKey().String())
	assert.False(t, f.c.StartTrading(domain.DirectionBuy, nil), "destroyed coordinator rejects runs")
}

func TestCoordinator_SetAmountModeRejectsUnknown(t *testing.T) {
	c := New(Options{})
	assert.ErrorIs(t, c.SetAmountMode("ratio"), ErrInvalidAmountMode)
	assert.Equal(t, domain.AmountModePercent, c.State().AmountMode)
}

type recordingConfirmer struct {
	mu   sync.Mutex
	sigs []string
}

func (r *recordingConfirmer) Watch(sig string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = append(r.sigs, sig)
}

func TestCoordinator_ConfirmerWatchesSuccessfulSubmissions(t *testing.T) {
	conf := &recordingConfirmer{}
	f := newFixture(t, 1, 2, instantPacer{})
	f.c.confirmer = conf
	f.swap.noRoute[f.tokens[0]] = true

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)

	conf.mu.Lock()
	defer conf.mu.Unlock()
	assert.Equal(t, []string{"sig1"}, conf.sigs)
}

func TestCoordinator_StopMidWalletFinishesWallet(t *testing.T) {
	f := newFixture(t, 3, 3, instantPacer{})
	hold := make(chan struct{})
	f.swap.hold = hold
	f.swap.held = make(chan struct{}, 1)

	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))

	select {
	case <-f.swap.held:
	case <-time.After(5 * time.Second):
		t.Fatal("first quote never started")
	}
	f.c.StopTrading()
	assert.False(t, f.c.IsTrading())
	close(hold)
	waitDone(t, f.c)

	entries := f.c.Entries()
	require.Len(t, entries, 3, "the wallet in flight trades all its tokens")
	for i, e := range entries {
		assert.Equal(t, f.wallets[0][:8]+"...", e.WalletAddressDisplay)
		assert.Equal(t, f.tokens[i][:8]+"...", e.TokenAddressDisplay)
		assert.Equal(t, domain.StatusSuccess, e.Status)
	}
	assert.Len(t, f.swap.Requests(), 3, "no later wallet is attempted")
	assert.Len(t, f.c.Entries(), 3)
}

func TestCoordinator_HungQuoteTimesOut(t *testing.T) {
	f := newFixture(t, 2, 2, instantPacer{})
	f.swap.hang = true
	f.c.callTimeout = 50 * time.Millisecond

	start := time.Now()
	require.True(t, f.c.StartTrading(domain.DirectionBuy, nil))
	waitDone(t, f.c)

	entries := f.c.Entries()
	require.Len(t, entries, 4, "the run continues past timed out calls")
	for _, e := range entries {
		assert.Equal(t, domain.StatusFailed, e.Status)
		assert.Equal(t, domain.FailedTxHash, e.TransactionHash)
		assert.Equal(t, "quote: "+context.DeadlineExceeded.Error(), e.Error)
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, f.c.IsTrading())
}
