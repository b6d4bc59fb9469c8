package domain

// Direction is the side of a trade relative to the target token.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Status is the outcome of a trade attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// FailedTxHash is the placeholder hash recorded for attempts that never reached the network.
const FailedTxHash = "NONE"

// TradeAttempt is a single (wallet, token) step of a run.
// Created per iteration step and never mutated.
type TradeAttempt struct {
	Wallet          *Wallet
	Token           TargetToken
	Direction       Direction
	RequestedAmount float64 // UI units (SOL for buys, token units for sells)
	Timestamp       int64   // Unix timestamp in milliseconds
}

// TradeLogEntry is the immutable record of one trade attempt.
// Insertion order into the feed is significant.
type TradeLogEntry struct {
	ID                   string    `json:"id"` // tx signature, or unix-millis for failed attempts
	Timestamp            int64     `json:"timestamp"`
	WalletAddressDisplay string    `json:"walletAddress"`
	TokenAddressDisplay  string    `json:"tokenAddress"`
	TransactionHash      string    `json:"txHash"`
	Status               Status    `json:"status"`
	Amount               float64   `json:"amount"`
	Direction            Direction `json:"type"`

	// Run bookkeeping
	RunID         string `json:"runId,omitempty"`
	Sequence      int    `json:"sequence"` // 1-based position within the run
	WalletAddress string `json:"-"`
	TokenAddress  string `json:"-"`
	Error         string `json:"error,omitempty"`
}

// Succeeded reports whether the attempt was accepted by the network.
func (e *TradeLogEntry) Succeeded() bool {
	return e.Status == StatusSuccess
}
