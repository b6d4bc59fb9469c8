// Package confirm tracks submitted signatures over the WebSocket API and
// records their commitment outcome in the feed.
package confirm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-batch-trader/internal/feed"
	"solana-batch-trader/internal/observability"
	"solana-batch-trader/internal/solana"
)

// DefaultTimeout bounds how long a signature is watched.
const DefaultTimeout = 60 * time.Second

// Outcome labels used for metrics.
const (
	ResultConfirmed = "confirmed"
	ResultFailed    = "failed"
	ResultTimeout   = "timeout"
	ResultError     = "error"
)

// Recorder stores confirmation outcomes.
type Recorder interface {
	SetConfirmation(c feed.Confirmation)
}

// Options configures a Watcher.
type Options struct {
	WS       solana.WSClient
	Recorder Recorder
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Watcher subscribes to each watched signature in its own goroutine.
type Watcher struct {
	ws       solana.WSClient
	recorder Recorder
	timeout  time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Watch against Close so no goroutine is added after Wait starts.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Watcher.
func New(opts Options) *Watcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		ws:       opts.WS,
		recorder: opts.Recorder,
		timeout:  timeout,
		log:      opts.Logger.With().Str("component", "confirm").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Watch starts tracking signature and returns immediately.
func (w *Watcher) Watch(signature string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watch(signature)
	}()
}

func (w *Watcher) watch(signature string) {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	log := w.log.With().Str("signature", signature).Logger()

	ch, err := w.ws.SubscribeSignature(ctx, signature)
	if err != nil {
		log.Warn().Err(err).Msg("subscribe failed")
		w.record(feed.Confirmation{Signature: signature, Err: fmt.Sprintf("subscribe: %v", err)}, ResultError)
		return
	}

	select {
	case status, ok := <-ch:
		w.resolve(log, signature, status, ok)
	case <-ctx.Done():
		// A status delivered alongside cancellation still counts.
		select {
		case status, ok := <-ch:
			if ok {
				w.resolve(log, signature, status, ok)
				return
			}
		default:
		}
		if w.ctx.Err() != nil {
			return
		}
		log.Warn().Dur("timeout", w.timeout).Msg("confirmation timed out")
		w.record(feed.Confirmation{Signature: signature, Err: "timeout"}, ResultTimeout)
	}
}

func (w *Watcher) resolve(log zerolog.Logger, signature string, status solana.SignatureStatus, ok bool) {
	if !ok {
		w.record(feed.Confirmation{Signature: signature, Err: "subscription closed"}, ResultError)
		return
	}
	c := feed.Confirmation{Signature: signature, Slot: status.Slot, Confirmed: status.Err == nil}
	result := ResultConfirmed
	if status.Err != nil {
		c.Err = fmt.Sprint(status.Err)
		result = ResultFailed
	}
	log.Debug().Int64("slot", status.Slot).Bool("confirmed", c.Confirmed).Msg("signature resolved")
	w.record(c, result)
}

func (w *Watcher) record(c feed.Confirmation, result string) {
	observability.RecordConfirmation(result)
	if w.recorder != nil {
		w.recorder.SetConfirmation(c)
	}
}

// Close stops all watches and waits for them to exit.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}
