package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// Commitment is the commitment level requested for signature notifications.
	Commitment string
	// Logger receives connection diagnostics.
	Logger zerolog.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        DefaultCommitment,
		Logger:            zerolog.Nop(),
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	log      zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to its delivery channel
	subs   map[int64]chan SignatureStatus
	subsMu sync.RWMutex

	// activeSignatures stores signatures for resubscription after reconnect
	activeSignatures   map[int64]string
	activeSignaturesMu sync.RWMutex

	// pendingSubs maps request ID to the subscription waiting for its ID
	pendingSubs   map[uint64]*pendingSub
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

type subscribeResult struct {
	id  int64
	err error
}

// pendingSub is registered by the read loop as soon as its confirmation
// arrives, before any notification for it can be dispatched.
type pendingSub struct {
	signature string
	ch        chan SignatureStatus
	result    chan subscribeResult
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}
	if cfg.Commitment == "" {
		cfg.Commitment = DefaultCommitment
	}

	c := &WSClientImpl{
		endpoint:         endpoint,
		config:           cfg,
		log:              cfg.Logger.With().Str("component", "ws").Logger(),
		subs:             make(map[int64]chan SignatureStatus),
		activeSignatures: make(map[int64]string),
		pendingSubs:      make(map[uint64]*pendingSub),
		done:             make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeSignature subscribes to the outcome of a transaction signature.
// The node drops the subscription after the first notification, so the
// returned channel is closed right after delivering it.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureStatus, error) {
	ch := make(chan SignatureStatus, 1)
	if _, err := c.subscribeSignatureInternal(ctx, signature, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	// Close all subscription channels
	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	// Close pending subscription channels
	c.pendingSubsMu.Lock()
	for id, p := range c.pendingSubs {
		close(p.result)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				c.log.Warn().Err(err).Dur("delay", reconnectDelay).Msg("connection lost, reconnecting")
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, the read loop schedules another attempt
		c.log.Warn().Err(err).Msg("reconnect failed")
		return
	}

	c.resubscribeAll()
}

// resubscribeAll resubscribes to all pending signatures after reconnect.
func (c *WSClientImpl) resubscribeAll() {
	c.activeSignaturesMu.RLock()
	signatures := make(map[int64]string, len(c.activeSignatures))
	for id, sig := range c.activeSignatures {
		signatures[id] = sig
	}
	c.activeSignaturesMu.RUnlock()

	for oldSubID, sig := range signatures {
		c.subsMu.Lock()
		ch, ok := c.subs[oldSubID]
		delete(c.subs, oldSubID)
		c.subsMu.Unlock()

		c.activeSignaturesMu.Lock()
		delete(c.activeSignatures, oldSubID)
		c.activeSignaturesMu.Unlock()

		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := c.subscribeSignatureInternal(ctx, sig, ch)
		cancel()

		if err != nil {
			c.log.Warn().Err(err).Str("signature", sig).Msg("resubscribe failed")
			close(ch)
		}
	}
}

// subscribeSignatureInternal sends signatureSubscribe and waits until the
// read loop has bound ch to the confirmed subscription ID.
func (c *WSClientImpl) subscribeSignatureInternal(ctx context.Context, signature string, ch chan SignatureStatus) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": c.config.Commitment},
		},
	}

	confirmCh := make(chan subscribeResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = &pendingSub{signature: signature, ch: ch, result: confirmCh}
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case res, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return res.id, res.err
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.log.Debug().Err(err).Msg("unparseable message")
		return
	}

	switch {
	case env.Method == "signatureNotification":
		var notif wsNotification
		if err := json.Unmarshal(message, &notif); err == nil {
			c.handleSignatureNotification(&notif)
		}
	case env.Error != nil:
		c.log.Warn().Int("code", env.Error.Code).Str("msg", env.Error.Message).Msg("error response")
		c.resolvePending(env.ID, subscribeResult{err: env.Error})
	case env.ID != 0:
		var resp wsSubscribeResponse
		if err := json.Unmarshal(message, &resp); err == nil {
			c.resolvePending(resp.ID, subscribeResult{id: resp.Result})
		}
	}
}

// resolvePending binds a confirmed subscription and wakes its caller.
func (c *WSClientImpl) resolvePending(reqID uint64, res subscribeResult) {
	c.pendingSubsMu.Lock()
	p, ok := c.pendingSubs[reqID]
	if ok {
		delete(c.pendingSubs, reqID)
	}
	c.pendingSubsMu.Unlock()

	if !ok {
		return
	}

	if res.err == nil {
		c.subsMu.Lock()
		c.subs[res.id] = p.ch
		c.subsMu.Unlock()

		c.activeSignaturesMu.Lock()
		c.activeSignatures[res.id] = p.signature
		c.activeSignaturesMu.Unlock()
	}

	select {
	case p.result <- res:
	default:
	}
}

// handleSignatureNotification delivers the status and retires the subscription.
func (c *WSClientImpl) handleSignatureNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	subID := notif.Params.Subscription

	c.activeSignaturesMu.Lock()
	sig := c.activeSignatures[subID]
	delete(c.activeSignatures, subID)
	c.activeSignaturesMu.Unlock()

	status := SignatureStatus{
		Signature: sig,
		Err:       notif.Params.Result.Value.Err,
	}
	if notif.Params.Result.Context != nil {
		status.Slot = notif.Params.Result.Context.Slot
	}

	c.subsMu.Lock()
	ch, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
	}
	c.subsMu.Unlock()

	if ok {
		ch <- status // buffered, one-shot
		close(ch)
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.Debug().Err(err).Msg("ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsEnvelope struct {
	ID     uint64    `json:"id"`
	Method string    `json:"method"`
	Error  *RPCError `json:"error"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}
