package domain

// AmountMode selects how the configured amount is interpreted.
type AmountMode string

const (
	// AmountModePercent trades a percentage of the fetched balance.
	AmountModePercent AmountMode = "percent"
	// AmountModeFiat trades a fixed fiat amount converted to SOL once per run.
	AmountModeFiat AmountMode = "fiat"
)

// IsValid checks if the mode is a valid value.
func (m AmountMode) IsValid() bool {
	return m == AmountModePercent || m == AmountModeFiat
}

// SessionState is the coordinator-owned run state.
type SessionState struct {
	IsTrading          bool
	WorkingIndex       int // cursor into the wallet snapshot
	ConfiguredAmount   float64
	ConfiguredSlippage float64 // percent
	AmountMode         AmountMode
	Direction          Direction
	RunID              string
}
