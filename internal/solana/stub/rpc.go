package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-batch-trader/internal/solana"
)

// ErrNotFound is returned when a stubbed lookup has no entry.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	Balances      map[string]uint64
	TokenAccounts map[string][]solana.TokenAccount

	// Injected failures; nil means success.
	BalanceErr      error
	TokenAccountErr error
	SendErr         error

	// Sent records every submitted transaction payload in order.
	Sent [][]byte

	sigSeq int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances:      make(map[string]uint64),
		TokenAccounts: make(map[string][]solana.TokenAccount),
	}
}

// GetBalance returns the stubbed lamport balance; unknown accounts hold zero.
func (c *RPCClient) GetBalance(_ context.Context, address string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[address], nil
}

// GetTokenAccountsByOwner returns stubbed accounts of owner matching the filter.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner string, filter solana.TokenAccountsFilter) ([]solana.TokenAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.TokenAccountErr != nil {
		return nil, c.TokenAccountErr
	}

	var out []solana.TokenAccount
	for _, acc := range c.TokenAccounts[owner] {
		if filter.ProgramID != "" && acc.ProgramID != filter.ProgramID {
			continue
		}
		if filter.Mint != "" && acc.Mint != filter.Mint {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

// SendTransaction records the payload and returns a sequential fake signature.
func (c *RPCClient) SendTransaction(_ context.Context, rawTx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return "", c.SendErr
	}

	cp := make([]byte, len(rawTx))
	copy(cp, rawTx)
	c.Sent = append(c.Sent, cp)

	c.sigSeq++
	return fmt.Sprintf("stubsig%d", c.sigSeq), nil
}

// SetBalance sets the lamport balance of an address.
func (c *RPCClient) SetBalance(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[address] = lamports
}

// AddTokenAccount adds a token account for owner.
func (c *RPCClient) AddTokenAccount(owner string, acc solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc.Owner == "" {
		acc.Owner = owner
	}
	if acc.ProgramID == "" {
		acc.ProgramID = solana.TokenProgramID
	}
	c.TokenAccounts[owner] = append(c.TokenAccounts[owner], acc)
}

// SentCount returns the number of submitted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}
