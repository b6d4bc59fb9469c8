// Package registry holds the working set of wallets and target tokens.
// Imports replace the whole set; a trading run works on a Snapshot.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"solana-batch-trader/internal/domain"
)

// Registry validates and stores wallets and token targets. It performs no I/O.
type Registry struct {
	mu      sync.RWMutex
	wallets []*domain.Wallet
	tokens  []domain.TargetToken
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// ImportWallets replaces the wallet set with the keys parsed from text, one per line.
// Invalid lines are reported as "line <n>: <reason>" and skipped.
func (r *Registry) ImportWallets(text string) domain.ImportResult {
	lines := splitLines(text)
	result := domain.ImportResult{Errors: []string{}}
	wallets := make([]*domain.Wallet, 0, len(lines))

	for i, line := range lines {
		key, err := DecodePrivateKey(line)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		wallets = append(wallets, domain.NewWallet(key))
		result.Success++
	}

	r.mu.Lock()
	r.wallets = wallets
	r.mu.Unlock()

	return result
}

// ImportTokens replaces the token set with the addresses parsed from text, one per line.
// Only the address format is checked.
func (r *Registry) ImportTokens(text string) domain.ImportResult {
	lines := splitLines(text)
	result := domain.ImportResult{Errors: []string{}}
	tokens := make([]domain.TargetToken, 0, len(lines))

	for i, line := range lines {
		if err := ValidateAddress(line); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		tokens = append(tokens, domain.TargetToken{Address: line})
		result.Success++
	}

	r.mu.Lock()
	r.tokens = tokens
	r.mu.Unlock()

	return result
}

// Clear empties both sets. A run in progress keeps its snapshot.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets = nil
	r.tokens = nil
}

// Snapshot returns copies of the current wallet and token slices.
// Wallets are shared by reference.
func (r *Registry) Snapshot() ([]*domain.Wallet, []domain.TargetToken) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wallets := make([]*domain.Wallet, len(r.wallets))
	copy(wallets, r.wallets)
	tokens := make([]domain.TargetToken, len(r.tokens))
	copy(tokens, r.tokens)
	return wallets, tokens
}

// WalletCount returns the number of imported wallets.
func (r *Registry) WalletCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wallets)
}

// TokenCount returns the number of imported tokens.
func (r *Registry) TokenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// Wallets returns the current wallet set.
func (r *Registry) Wallets() []*domain.Wallet {
	wallets, _ := r.Snapshot()
	return wallets
}

// splitLines returns trimmed non-empty lines.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
