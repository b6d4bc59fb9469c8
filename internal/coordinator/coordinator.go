// Package coordinator runs batched trading sessions: it walks the wallet
// snapshot one wallet at a time, trades every target token for that wallet
// and reports one log entry per attempt.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/feed"
	"solana-batch-trader/internal/observability"
	"solana-batch-trader/internal/oracle"
	"solana-batch-trader/internal/registry"
	"solana-batch-trader/internal/signer"
	"solana-batch-trader/internal/swap"
)

// Default configuration values.
const (
	DefaultPaceInterval = 3 * time.Second
	DefaultPriceBuffer  = 1.05
	DefaultCallTimeout  = 5 * time.Second
)

// ErrInvalidAmountMode is returned by SetAmountMode for unknown modes.
var ErrInvalidAmountMode = errors.New("invalid amount mode")

// LogEntryFunc receives every log entry synchronously and in order.
type LogEntryFunc func(domain.TradeLogEntry)

// Confirmer tracks submitted signatures until they land. Watch must not block.
type Confirmer interface {
	Watch(signature string)
}

// Options configures a Coordinator.
type Options struct {
	Registry  *registry.Registry
	Feed      *feed.Feed
	Swap      swap.Provider
	Submitter signer.Submitter
	Oracle    oracle.Oracle
	Confirmer Confirmer // optional

	// Pacer overrides the inter-wallet delay; defaults to TimerPacer{PaceInterval}.
	Pacer        Pacer
	PaceInterval time.Duration
	PriceBuffer  float64
	CallTimeout  time.Duration

	// Initial session configuration.
	Amount     float64
	AmountMode domain.AmountMode
	Slippage   float64 // percent

	Logger zerolog.Logger
	Now    func() time.Time
}

// Coordinator owns the session state machine: Idle -> Running -> Idle.
type Coordinator struct {
	registry  *registry.Registry
	feed      *feed.Feed
	swap      swap.Provider
	submitter signer.Submitter
	oracle    oracle.Oracle
	confirmer Confirmer
	pacer     Pacer

	priceBuffer float64
	callTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time

	// base is cancelled by Destroy to abort in-flight calls.
	base       context.Context
	baseCancel context.CancelFunc

	// startMu serializes StartTrading, which may block on the price oracle.
	startMu sync.Mutex

	mu        sync.Mutex
	state     domain.SessionState
	stopPace  context.CancelFunc
	done      chan struct{} // closed when the current loop exits
	destroyed bool
}

// New creates a Coordinator in the Idle state.
func New(opts Options) *Coordinator {
	interval := opts.PaceInterval
	if interval <= 0 {
		interval = DefaultPaceInterval
	}
	pacer := opts.Pacer
	if pacer == nil {
		pacer = TimerPacer{Interval: interval}
	}
	buffer := opts.PriceBuffer
	if buffer <= 0 {
		buffer = DefaultPriceBuffer
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	mode := opts.AmountMode
	if !mode.IsValid() {
		mode = domain.AmountModePercent
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
	}
	fd := opts.Feed
	if fd == nil {
		fd = feed.New(feed.Options{Wallets: reg, Balances: opts.Oracle, Logger: opts.Logger})
	}

	base, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	close(done)

	return &Coordinator{
		registry:    reg,
		feed:        fd,
		swap:        opts.Swap,
		submitter:   opts.Submitter,
		oracle:      opts.Oracle,
		confirmer:   opts.Confirmer,
		pacer:       pacer,
		priceBuffer: buffer,
		callTimeout: timeout,
		log:         opts.Logger.With().Str("component", "coordinator").Logger(),
		now:         now,
		base:        base,
		baseCancel:  cancel,
		done:        done,
		state: domain.SessionState{
			ConfiguredAmount:   opts.Amount,
			ConfiguredSlippage: opts.Slippage,
			AmountMode:         mode,
		},
	}
}

// ImportWallets replaces the wallet set. A running session keeps its snapshot.
func (c *Coordinator) ImportWallets(text string) domain.ImportResult {
	res := c.registry.ImportWallets(text)
	c.log.Info().Int("success", res.Success).Int("failed", res.Failed).Msg("wallets imported")
	return res
}

// ImportTokens replaces the token set. A running session keeps its snapshot.
func (c *Coordinator) ImportTokens(text string) domain.ImportResult {
	res := c.registry.ImportTokens(text)
	c.log.Info().Int("success", res.Success).Int("failed", res.Failed).Msg("tokens imported")
	return res
}

// SetAmount sets the trade amount: a percentage of balance or a fiat amount,
// depending on the amount mode. Takes effect on the next run.
func (c *Coordinator) SetAmount(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ConfiguredAmount = v
}

// SetAmountMode selects percent or fiat sizing. Takes effect on the next run.
func (c *Coordinator) SetAmountMode(mode domain.AmountMode) error {
	if !mode.IsValid() {
		return ErrInvalidAmountMode
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.AmountMode = mode
	return nil
}

// SetSlippage sets the slippage tolerance in percent. Takes effect on the next run.
func (c *Coordinator) SetSlippage(pct float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ConfiguredSlippage = pct
}

// State returns a copy of the session state.
func (c *Coordinator) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsTrading reports whether a run is active.
func (c *Coordinator) IsTrading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsTrading
}

// run is the frozen configuration of one trading run.
type run struct {
	id          string
	direction   domain.Direction
	wallets     []*domain.Wallet
	tokens      []domain.TargetToken
	mode        domain.AmountMode
	amount      float64
	slippageBps int
	fiatNative  decimal.Decimal // SOL per attempt in fiat mode
	onLogEntry  LogEntryFunc
	paceCtx     context.Context
	done        chan struct{}
	sequence    int
}

// StartTrading starts a run over a snapshot of the current wallets and tokens.
// It returns false when either set is empty, a run is already active or still
// finishing, the direction is invalid, or fiat mode cannot obtain a price.
func (c *Coordinator) StartTrading(direction domain.Direction, onLogEntry LogEntryFunc) bool {
	if !direction.IsValid() {
		return false
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.destroyed || c.state.IsTrading || !isClosed(c.done) {
		c.mu.Unlock()
		return false
	}
	cfg := c.state
	c.mu.Unlock()

	wallets, tokens := c.registry.Snapshot()
	if len(wallets) == 0 || len(tokens) == 0 {
		c.log.Warn().Int("wallets", len(wallets)).Int("tokens", len(tokens)).Msg("start rejected: empty set")
		return false
	}

	r := &run{
		id:          uuid.NewString(),
		direction:   direction,
		wallets:     wallets,
		tokens:      tokens,
		mode:        cfg.AmountMode,
		amount:      cfg.ConfiguredAmount,
		slippageBps: SlippageBps(cfg.ConfiguredSlippage),
		onLogEntry:  onLogEntry,
		done:        make(chan struct{}),
	}

	// Fiat sizing is priced once per run.
	if r.mode == domain.AmountModeFiat {
		ctx, cancel := context.WithTimeout(c.base, c.callTimeout)
		price := c.oracle.NativeAssetFiatPrice(ctx)
		cancel()
		if price == oracle.PriceUnavailable || price <= 0 {
			c.log.Warn().Msg("start rejected: price unavailable")
			return false
		}
		r.fiatNative = FiatToNative(r.amount, price, c.priceBuffer)
		c.log.Info().Float64("price", price).Str("sol_per_trade", r.fiatNative.String()).Msg("fiat amount converted")
	}

	paceCtx, stopPace := context.WithCancel(c.base)
	r.paceCtx = paceCtx

	c.mu.Lock()
	c.state.IsTrading = true
	c.state.WorkingIndex = 0
	c.state.Direction = direction
	c.state.RunID = r.id
	c.stopPace = stopPace
	c.done = r.done
	c.mu.Unlock()

	c.feed.SetRunState(true, 0, r.id)
	observability.RecordRunStarted()

	c.log.Info().
		Str("run_id", r.id).
		Str("direction", direction.String()).
		Int("wallets", len(wallets)).
		Int("tokens", len(tokens)).
		Str("mode", string(r.mode)).
		Float64("amount", r.amount).
		Int("slippage_bps", r.slippageBps).
		Msg("run started")

	go c.loop(r, stopPace)
	return true
}

// StopTrading ends the active run. The wallet in flight finishes its tokens
// and their entries are logged; no later wallet starts.
func (c *Coordinator) StopTrading() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsTrading {
		return
	}
	c.state.IsTrading = false
	if c.stopPace != nil {
		c.stopPace()
	}
	c.log.Info().Str("run_id", c.state.RunID).Msg("stop requested")
}

// Wait blocks until the current run, if any, has exited.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	<-done
}

// Done returns a channel closed when the current run has exited.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reset stops trading, waits for the loop to exit, and clears wallets,
// tokens and the log. The coordinator remains usable.
func (c *Coordinator) Reset() {
	c.StopTrading()
	c.Wait()
	c.registry.Clear()
	c.feed.Clear()
	c.log.Info().Msg("reset")
}

// Destroy stops trading, aborts in-flight calls and clears all state.
// A destroyed coordinator rejects further runs.
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()

	c.StopTrading()
	c.baseCancel()
	c.Wait()
	c.registry.Clear()
	c.feed.Clear()
	c.log.Info().Msg("destroyed")
}

// GetStatus returns a cheap status snapshot.
func (c *Coordinator) GetStatus() domain.StatusSnapshot {
	return c.feed.GetStatus()
}

// GetRealtimeStatus returns a snapshot with live SOL balances.
func (c *Coordinator) GetRealtimeStatus(ctx context.Context) domain.StatusSnapshot {
	return c.feed.GetRealtimeStatus(ctx)
}

// Entries returns the trade log in order.
func (c *Coordinator) Entries() []domain.TradeLogEntry {
	return c.feed.Entries()
}

// Stats returns statistics derived from the trade log.
func (c *Coordinator) Stats() domain.TradeStats {
	return c.feed.Stats()
}

// ClearLog empties the trade log.
func (c *Coordinator) ClearLog() {
	c.feed.Clear()
}

// loop drives one run to exhaustion or stop.
func (c *Coordinator) loop(r *run, stopPace context.CancelFunc) {
	started := c.now()
	reason := "exhausted"

	defer func() {
		stopPace()

		c.mu.Lock()
		c.state.IsTrading = false
		c.state.WorkingIndex = 0
		c.mu.Unlock()

		c.feed.SetRunState(false, 0, r.id)
		observability.RecordRunFinished(reason, c.now().Sub(started).Seconds())
		c.log.Info().Str("run_id", r.id).Str("reason", reason).Int("entries", r.sequence).Msg("run finished")

		close(r.done)
	}()

	for {
		c.mu.Lock()
		if !c.state.IsTrading {
			c.mu.Unlock()
			reason = "stopped"
			return
		}
		if c.state.WorkingIndex >= len(r.wallets) {
			c.mu.Unlock()
			return
		}
		c.state.WorkingIndex++
		index := c.state.WorkingIndex
		c.mu.Unlock()

		c.feed.SetRunState(true, index, r.id)
		observability.UpdateWorkingIndex(index)

		wallet := r.wallets[index-1]
		for _, token := range r.tokens {
			entry := c.attempt(r, wallet, token)
			c.emit(r, entry)
		}

		if index >= len(r.wallets) {
			return
		}
		if err := c.pacer.Pace(r.paceCtx); err != nil {
			c.log.Debug().Err(err).Msg("pacing interrupted")
		}
	}
}

// emit records entry in the feed, then hands it to the run callback.
func (c *Coordinator) emit(r *run, entry domain.TradeLogEntry) {
	c.feed.Append(entry)
	observability.RecordTradeAttempt(entry.Direction.String(), entry.Status.String(), entry.Amount, entry.Timestamp/1000)

	if r.onLogEntry != nil {
		r.onLogEntry(entry)
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
