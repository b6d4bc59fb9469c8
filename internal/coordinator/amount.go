package coordinator

import (
	"math/big"

	"github.com/shopspring/decimal"

	"solana-batch-trader/internal/solana"
)

var hundred = decimal.NewFromInt(100)

// FiatToNative converts a fiat amount to SOL with the price buffer applied:
// amount_sol = fiat * buffer / price. A non-positive price yields zero.
func FiatToNative(fiat, price, buffer float64) decimal.Decimal {
	p := decimal.NewFromFloat(price)
	if !p.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(fiat).Mul(decimal.NewFromFloat(buffer)).Div(p)
}

// PercentOf returns floor(pct/100 * balance) in base units, clamped to [0, balance].
func PercentOf(pct float64, balance uint64) uint64 {
	if pct <= 0 || balance == 0 {
		return 0
	}
	if pct >= 100 {
		return balance
	}
	d := decimal.NewFromFloat(pct).Div(hundred).Mul(fromUint64(balance)).Floor()
	return d.BigInt().Uint64()
}

// SlippageBps converts a slippage percentage to basis points, rounded.
func SlippageBps(pct float64) int {
	if pct <= 0 {
		return 0
	}
	return int(decimal.NewFromFloat(pct).Mul(hundred).Round(0).IntPart())
}

// SOLToLamports converts SOL to lamports, truncating.
func SOLToLamports(sol decimal.Decimal) uint64 {
	if !sol.IsPositive() {
		return 0
	}
	return sol.Shift(solana.NativeDecimals).Floor().BigInt().Uint64()
}

// ToUI converts base units to whole units for the given precision.
func ToUI(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
