package coordinator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/observability"
	"solana-batch-trader/internal/solana"
	"solana-batch-trader/internal/swap"
)

// Pipeline stages, used for failure reasons and metrics.
const (
	stageBalance = "balance"
	stageAmount  = "amount"
	stageQuote   = "quote"
	stageBuild   = "build"
	stageSubmit  = "submit"
)

// sizing is the concrete trade computed from a fetched balance.
type sizing struct {
	request swap.QuoteRequest
	amount  decimal.Decimal // UI units recorded in the log
}

// attempt runs balance -> amount -> quote -> build -> submit for one
// (wallet, token) pair and always returns exactly one entry.
func (c *Coordinator) attempt(r *run, wallet *domain.Wallet, token domain.TargetToken) domain.TradeLogEntry {
	r.sequence++
	ta := domain.TradeAttempt{
		Wallet:    wallet,
		Token:     token,
		Direction: r.direction,
		Timestamp: c.now().UnixMilli(),
	}

	log := c.log.With().
		Str("run_id", r.id).
		Int("seq", r.sequence).
		Str("wallet", wallet.Display()).
		Str("token", token.Display()).
		Str("direction", r.direction.String()).
		Logger()

	size, stage, reason := c.size(r, wallet, token)
	if reason != "" {
		return c.failed(r, ta, size.amount, stage, reason)
	}
	ta.RequestedAmount = size.amount.InexactFloat64()

	ctx, cancel := context.WithTimeout(c.base, c.callTimeout)
	qr := c.swap.Quote(ctx, size.request)
	cancel()
	if !qr.OK() {
		return c.failed(r, ta, size.amount, stageQuote, qr.NoRoute)
	}

	ctx, cancel = context.WithTimeout(c.base, c.callTimeout)
	br := c.swap.Build(ctx, qr.Quote, wallet.PublicAddress)
	cancel()
	if !br.OK() {
		return c.failed(r, ta, size.amount, stageBuild, br.Failed)
	}

	submitStart := c.now()
	sr := c.submitter.SignAndSubmit(c.base, br.Tx, wallet)
	if !sr.OK() {
		return c.failed(r, ta, size.amount, stageSubmit, sr.Failed)
	}
	observability.RecordSubmitLatency(c.now().Sub(submitStart).Seconds())

	wallet.AddVolume(size.amount)
	if c.confirmer != nil {
		c.confirmer.Watch(sr.Signature)
	}

	log.Info().
		Str("signature", sr.Signature).
		Str("amount", size.amount.String()).
		Str("route", qr.Quote.RouteID).
		Msg("trade submitted")

	return c.entry(r, ta, size.amount, domain.StatusSuccess, sr.Signature, sr.Signature, "")
}

// size fetches the balance relevant to the direction and computes the quote request.
// On failure it returns the stage and a reason.
func (c *Coordinator) size(r *run, wallet *domain.Wallet, token domain.TargetToken) (sizing, string, string) {
	ctx, cancel := context.WithTimeout(c.base, c.callTimeout)
	defer cancel()

	if r.direction == domain.DirectionBuy {
		lamports, err := c.oracle.NativeBalance(ctx, wallet.PublicAddress)
		if err != nil {
			return sizing{}, stageBalance, err.Error()
		}

		var spend uint64
		if r.mode == domain.AmountModeFiat {
			spend = SOLToLamports(r.fiatNative)
			if spend > lamports {
				return sizing{amount: r.fiatNative}, stageBalance,
					fmt.Sprintf("insufficient balance: have %d lamports, need %d", lamports, spend)
			}
		} else {
			spend = PercentOf(r.amount, lamports)
		}
		if spend == 0 {
			return sizing{}, stageAmount, "zero trade amount"
		}

		return sizing{
			request: swap.QuoteRequest{
				InputMint:   solana.NativeMint,
				OutputMint:  token.Address,
				Amount:      spend,
				SlippageBps: r.slippageBps,
				SwapMode:    swap.ExactIn,
			},
			amount: ToUI(spend, solana.NativeDecimals),
		}, "", ""
	}

	bal, err := c.oracle.TokenBalance(ctx, wallet.PublicAddress, token.Address)
	if err != nil {
		return sizing{}, stageBalance, err.Error()
	}
	if bal.Amount == 0 {
		return sizing{}, stageAmount, "zero token balance"
	}

	if r.mode == domain.AmountModeFiat {
		// Sell enough tokens to receive the fiat-equivalent SOL.
		receive := SOLToLamports(r.fiatNative)
		if receive == 0 {
			return sizing{}, stageAmount, "zero trade amount"
		}
		return sizing{
			request: swap.QuoteRequest{
				InputMint:   token.Address,
				OutputMint:  solana.NativeMint,
				Amount:      receive,
				SlippageBps: r.slippageBps,
				SwapMode:    swap.ExactOut,
			},
			amount: r.fiatNative,
		}, "", ""
	}

	sell := PercentOf(r.amount, bal.Amount)
	if sell == 0 {
		return sizing{}, stageAmount, "zero trade amount"
	}
	return sizing{
		request: swap.QuoteRequest{
			InputMint:   token.Address,
			OutputMint:  solana.NativeMint,
			Amount:      sell,
			SlippageBps: r.slippageBps,
			SwapMode:    swap.ExactIn,
		},
		amount: ToUI(sell, bal.Decimals),
	}, "", ""
}

// failed builds the synthetic failure entry: unix-millis id and "NONE" hash.
func (c *Coordinator) failed(r *run, ta domain.TradeAttempt, amount decimal.Decimal, stage, reason string) domain.TradeLogEntry {
	observability.RecordNegative(stage)
	c.log.Warn().
		Str("run_id", r.id).
		Str("wallet", ta.Wallet.Display()).
		Str("token", ta.Token.Display()).
		Str("stage", stage).
		Str("reason", reason).
		Msg("trade failed")

	id := strconv.FormatInt(c.now().UnixMilli(), 10)
	return c.entry(r, ta, amount, domain.StatusFailed, id, domain.FailedTxHash, stage+": "+reason)
}

func (c *Coordinator) entry(r *run, ta domain.TradeAttempt, amount decimal.Decimal, status domain.Status, id, hash, errText string) domain.TradeLogEntry {
	return domain.TradeLogEntry{
		ID:                   id,
		Timestamp:            c.now().UnixMilli(),
		WalletAddressDisplay: ta.Wallet.Display(),
		TokenAddressDisplay:  ta.Token.Display(),
		TransactionHash:      hash,
		Status:               status,
		Amount:               amount.InexactFloat64(),
		Direction:            ta.Direction,
		RunID:                r.id,
		Sequence:             r.sequence,
		WalletAddress:        ta.Wallet.PublicAddress,
		TokenAddress:         ta.Token.Address,
		Error:                errText,
	}
}
