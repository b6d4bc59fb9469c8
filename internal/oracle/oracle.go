// Package oracle reads balances from the chain and the SOL fiat price from Jupiter.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-batch-trader/internal/solana"
)

// PriceUnavailable is returned by NativeAssetFiatPrice when no price could be fetched.
const PriceUnavailable = -1.0

// Default configuration values.
const (
	DefaultPriceURL    = "https://lite-api.jup.ag/price/v3"
	DefaultCallTimeout = 5 * time.Second
)

// Oracle is the balance and price source used to size trades.
type Oracle interface {
	// NativeBalance returns the lamport balance of address.
	NativeBalance(ctx context.Context, address string) (uint64, error)
	// TokenBalance returns the balance owner holds of mint. No account means zero.
	TokenBalance(ctx context.Context, owner, mint string) (TokenAmount, error)
	// NativeAssetFiatPrice returns the USD price of SOL, or PriceUnavailable.
	NativeAssetFiatPrice(ctx context.Context) float64
}

// TokenAmount is a raw token balance with its mint precision.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// UI returns the amount in whole-token units.
func (t TokenAmount) UI() decimal.Decimal {
	return scaled(t.Amount, int32(t.Decimals))
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return scaled(lamports, solana.NativeDecimals)
}

// scaled keeps the full uint64 range; int64 conversion would wrap above 2^63.
func scaled(amount uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
}

// Options configures a Chain oracle.
type Options struct {
	RPC         solana.RPCClient
	PriceURL    string
	HTTPClient  *http.Client
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// Chain implements Oracle over Solana RPC and the Jupiter price API.
type Chain struct {
	rpc         solana.RPCClient
	priceURL    string
	client      *http.Client
	callTimeout time.Duration
	log         zerolog.Logger
}

var _ Oracle = (*Chain)(nil)

// New creates a Chain oracle.
func New(opts Options) *Chain {
	c := &Chain{
		rpc:         opts.RPC,
		priceURL:    opts.PriceURL,
		client:      opts.HTTPClient,
		callTimeout: opts.CallTimeout,
		log:         opts.Logger.With().Str("component", "oracle").Logger(),
	}
	if c.priceURL == "" {
		c.priceURL = DefaultPriceURL
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultCallTimeout
	}
	return c
}

// tokenPrograms are the ownership paths an SPL token account can live under.
var tokenPrograms = []string{solana.TokenProgramID, solana.Token2022ProgramID}

// NativeBalance returns the lamport balance of address.
func (c *Chain) NativeBalance(ctx context.Context, address string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	lamports, err := c.rpc.GetBalance(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return lamports, nil
}

// TokenBalance sums owner's accounts for mint under both token programs.
func (c *Chain) TokenBalance(ctx context.Context, owner, mint string) (TokenAmount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var total TokenAmount
	for _, program := range tokenPrograms {
		accounts, err := c.rpc.GetTokenAccountsByOwner(ctx, owner, solana.TokenAccountsFilter{ProgramID: program})
		if err != nil {
			return TokenAmount{}, fmt.Errorf("get token accounts (%s): %w", program, err)
		}
		for _, acc := range accounts {
			if acc.Mint != mint {
				continue
			}
			total.Amount += acc.Amount
			total.Decimals = acc.Decimals
		}
	}
	return total, nil
}

// priceEntry is one mint in the price v3 response.
type priceEntry struct {
	USDPrice float64 `json:"usdPrice"`
}

// NativeAssetFiatPrice fetches the USD price of SOL. Any failure yields PriceUnavailable.
func (c *Chain) NativeAssetFiatPrice(ctx context.Context) float64 {
	price, err := c.fetchPrice(ctx, solana.NativeMint)
	if err != nil {
		c.log.Warn().Err(err).Msg("price unavailable")
		return PriceUnavailable
	}
	return price
}

func (c *Chain) fetchPrice(ctx context.Context, mint string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	u, err := url.Parse(c.priceURL)
	if err != nil {
		return 0, fmt.Errorf("parse price url: %w", err)
	}
	q := u.Query()
	q.Set("ids", mint)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var prices map[string]priceEntry
	if err := json.Unmarshal(body, &prices); err != nil {
		return 0, fmt.Errorf("unmarshal price: %w", err)
	}

	entry, ok := prices[mint]
	if !ok || entry.USDPrice <= 0 {
		return 0, fmt.Errorf("no price for %s", mint)
	}
	return entry.USDPrice, nil
}
