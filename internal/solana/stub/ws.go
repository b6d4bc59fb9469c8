package stub

import (
	"context"
	"errors"
	"sync"

	"solana-batch-trader/internal/solana"
)

// WSClient implements solana.WSClient for testing. Statuses preset in
// Outcomes are delivered immediately; other signatures stay pending until
// Resolve is called.
type WSClient struct {
	mu       sync.Mutex
	Outcomes map[string]solana.SignatureStatus
	pending  map[string]chan solana.SignatureStatus
	closed   bool

	SubscribeErr error
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{
		Outcomes: make(map[string]solana.SignatureStatus),
		pending:  make(map[string]chan solana.SignatureStatus),
	}
}

// SubscribeSignature returns a one-shot channel for the signature.
func (c *WSClient) SubscribeSignature(_ context.Context, signature string) (<-chan solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("client closed")
	}
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}

	ch := make(chan solana.SignatureStatus, 1)
	if status, ok := c.Outcomes[signature]; ok {
		status.Signature = signature
		ch <- status
		close(ch)
		return ch, nil
	}
	c.pending[signature] = ch
	return ch, nil
}

// Resolve delivers a status to a pending subscription.
func (c *WSClient) Resolve(signature string, status solana.SignatureStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.pending[signature]
	if !ok {
		return false
	}
	delete(c.pending, signature)
	status.Signature = signature
	ch <- status
	close(ch)
	return true
}

// Close closes all pending subscriptions.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for sig, ch := range c.pending {
		close(ch)
		delete(c.pending, sig)
	}
	return nil
}
