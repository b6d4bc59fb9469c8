package domain

// ImportResult summarizes a line-oriented import.
type ImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// WalletSummary is the display view of one wallet.
type WalletSummary struct {
	Address          string   `json:"publicKey"`
	Balance          *float64 `json:"balance,omitempty"` // SOL; set only by realtime status
	CumulativeVolume float64  `json:"cumulativeVolume"`
}

// TradeStats is derived from the trade log and never tracked separately.
type TradeStats struct {
	TotalTrades      int     `json:"totalTrades"`
	SuccessfulTrades int     `json:"successfulTrades"`
	FailedTrades     int     `json:"failedTrades"`
	PendingTrades    int     `json:"pendingTrades"`
	SuccessRate      float64 `json:"successRate"` // percent
	TotalVolume      float64 `json:"totalVolume"`
}

// StatusSnapshot is a point-in-time view of the coordinator.
type StatusSnapshot struct {
	IsTrading    bool            `json:"isTrading"`
	WalletCount  int             `json:"walletsCount"`
	TokenCount   int             `json:"tokensCount"`
	WorkingIndex int             `json:"workingIndex"`
	RunID        string          `json:"runId,omitempty"`
	Wallets      []WalletSummary `json:"wallets"`
	Stats        TradeStats      `json:"stats"`
	Confirmed    int             `json:"confirmed"`
}
