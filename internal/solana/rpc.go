package solana

import "context"

// RPCClient defines the Solana RPC HTTP calls used by the trader.
type RPCClient interface {
	// GetBalance returns the lamport balance of an account. Missing accounts have zero balance.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetTokenAccountsByOwner returns the parsed token accounts of owner matching the filter.
	GetTokenAccountsByOwner(ctx context.Context, owner string, filter TokenAccountsFilter) ([]TokenAccount, error)

	// SendTransaction submits a signed, serialized transaction and returns its signature.
	SendTransaction(ctx context.Context, rawTx []byte) (string, error)
}

// TokenAccountsFilter selects token accounts either by program or by mint.
// Exactly one field must be set.
type TokenAccountsFilter struct {
	ProgramID string
	Mint      string
}

// TokenAccount is a parsed SPL token account.
type TokenAccount struct {
	Address   string
	Mint      string
	Owner     string
	ProgramID string
	Amount    uint64 // raw base units
	Decimals  uint8
}
