// Package swap adapts the Jupiter swap API into tagged quote and build results.
package swap

import (
	"context"
	"encoding/json"
)

// SwapMode selects which side of the quote is fixed.
type SwapMode string

const (
	// ExactIn fixes the input amount.
	ExactIn SwapMode = "ExactIn"
	// ExactOut fixes the output amount.
	ExactOut SwapMode = "ExactOut"
)

// Provider quotes swaps and builds unsigned swap transactions.
// Implementations never return errors; every negative outcome is a value.
type Provider interface {
	Quote(ctx context.Context, req QuoteRequest) QuoteResult
	Build(ctx context.Context, quote *Quote, walletAddress string) BuildResult
}

// QuoteRequest describes a swap to price. Amount is in base units of the
// fixed side (input for ExactIn, output for ExactOut).
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
	SwapMode    SwapMode
}

// Quote is a priced route returned by the provider.
type Quote struct {
	InputMint   string
	OutputMint  string
	InAmount    uint64
	OutAmount   uint64
	RouteID     string
	SlippageBps int
	SwapMode    SwapMode

	// raw is the provider response, echoed back verbatim when building.
	raw json.RawMessage
}

// QuoteResult is either a Quote or a NoRoute reason.
type QuoteResult struct {
	Quote   *Quote
	NoRoute string
}

// OK reports whether a usable quote was returned.
func (r QuoteResult) OK() bool { return r.Quote != nil }

// UnsignedTransaction is a base64-encoded serialized transaction awaiting signatures.
type UnsignedTransaction string

// BuildResult is either an UnsignedTransaction or a Failed reason.
type BuildResult struct {
	Tx     UnsignedTransaction
	Failed string
}

// OK reports whether a transaction was built.
func (r BuildResult) OK() bool { return r.Tx != "" && r.Failed == "" }

func noRoute(reason string) QuoteResult { return QuoteResult{NoRoute: reason} }

func buildFailed(reason string) BuildResult { return BuildResult{Failed: reason} }
