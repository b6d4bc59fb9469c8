package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature waits for the commitment outcome of a transaction signature.
	// The returned channel yields at most one status and is then closed.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureStatus, error)

	// Close closes the WebSocket connection.
	Close() error
}
