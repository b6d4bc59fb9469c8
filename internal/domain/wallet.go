package domain

import (
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// displayPrefixLen is the number of leading address characters kept for display.
const displayPrefixLen = 8

// Wallet is a key-pair-controlled account imported into the registry.
// The registry owns wallets; a trading run holds references to them.
type Wallet struct {
	PublicAddress string            // base58 public key
	Key           solana.PrivateKey // 64-byte ed25519 secret key

	mu               sync.Mutex
	cumulativeVolume decimal.Decimal
}

// NewWallet creates a wallet from a validated private key.
func NewWallet(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PublicAddress: key.PublicKey().String(),
		Key:           key,
	}
}

// AddVolume accumulates traded volume for the wallet.
func (w *Wallet) AddVolume(amount decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cumulativeVolume = w.cumulativeVolume.Add(amount)
}

// CumulativeVolume returns the volume traded by this wallet since import.
func (w *Wallet) CumulativeVolume() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cumulativeVolume
}

// Display returns the truncated public address.
func (w *Wallet) Display() string {
	return DisplayAddress(w.PublicAddress)
}

// TargetToken is a token mint address to trade.
type TargetToken struct {
	Address string
}

// Display returns the truncated mint address.
func (t TargetToken) Display() string {
	return DisplayAddress(t.Address)
}

// DisplayAddress truncates an address to its first 8 characters followed by "...".
func DisplayAddress(address string) string {
	if len(address) <= displayPrefixLen {
		return address + "..."
	}
	return address[:displayPrefixLen] + "..."
}
