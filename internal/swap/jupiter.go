package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://lite-api.jup.ag"
	DefaultCallTimeout = 5 * time.Second
	DefaultRateLimit   = 10 // requests per second
	DefaultBurst       = 1
)

// JupiterClient implements Provider against the Jupiter swap v1 API.
type JupiterClient struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	callTimeout time.Duration
	log         zerolog.Logger
}

// ClientOption configures JupiterClient.
type ClientOption func(*JupiterClient)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *JupiterClient) {
		c.client = client
	}
}

// WithCallTimeout bounds every provider request.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *JupiterClient) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithRateLimit throttles provider requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *JupiterClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *JupiterClient) {
		c.log = log
	}
}

// NewJupiterClient creates a client for baseURL (e.g. https://lite-api.jup.ag).
func NewJupiterClient(baseURL string, opts ...ClientOption) *JupiterClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &JupiterClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultBurst),
		callTimeout: DefaultCallTimeout,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "jupiter").Logger()
	return c
}

var _ Provider = (*JupiterClient)(nil)

// quoteResponse is the subset of the quote payload the client inspects.
type quoteResponse struct {
	InputMint   string      `json:"inputMint"`
	OutputMint  string      `json:"outputMint"`
	InAmount    string      `json:"inAmount"`
	OutAmount   string      `json:"outAmount"`
	SwapMode    string      `json:"swapMode"`
	SlippageBps int         `json:"slippageBps"`
	RoutePlan   []routeStep `json:"routePlan"`
	Error       string      `json:"error"`
}

type routeStep struct {
	SwapInfo struct {
		AmmKey string `json:"ammKey"`
		Label  string `json:"label"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// Quote requests a route. Empty or malformed routes and transport failures
// become NoRoute results.
func (c *JupiterClient) Quote(ctx context.Context, req QuoteRequest) QuoteResult {
	if req.Amount == 0 {
		return noRoute("zero amount")
	}
	mode := req.SwapMode
	if mode == "" {
		mode = ExactIn
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("swapMode", string(mode))
	q.Set("restrictIntermediateTokens", "true")

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/swap/v1/quote?"+q.Encode(), nil)
	if err != nil {
		c.log.Debug().Err(err).Str("output_mint", req.OutputMint).Msg("quote failed")
		return noRoute(err.Error())
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return noRoute(fmt.Sprintf("malformed quote: %v", err))
	}
	if resp.Error != "" {
		return noRoute(resp.Error)
	}
	if len(resp.RoutePlan) == 0 {
		return noRoute("empty route")
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return noRoute(fmt.Sprintf("malformed inAmount %q", resp.InAmount))
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return noRoute(fmt.Sprintf("malformed outAmount %q", resp.OutAmount))
	}

	keys := make([]string, 0, len(resp.RoutePlan))
	for _, step := range resp.RoutePlan {
		keys = append(keys, step.SwapInfo.AmmKey)
	}

	swapMode := SwapMode(resp.SwapMode)
	if swapMode == "" {
		swapMode = mode
	}

	return QuoteResult{Quote: &Quote{
		InputMint:   resp.InputMint,
		OutputMint:  resp.OutputMint,
		InAmount:    inAmount,
		OutAmount:   outAmount,
		RouteID:     strings.Join(keys, ","),
		SlippageBps: resp.SlippageBps,
		SwapMode:    swapMode,
		raw:         json.RawMessage(body),
	}}
}

// swapRequest is the POST body for /swap/v1/swap.
type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// Build requests an unsigned transaction for quote, payable by walletAddress.
func (c *JupiterClient) Build(ctx context.Context, quote *Quote, walletAddress string) BuildResult {
	if quote == nil || len(quote.raw) == 0 {
		return buildFailed("missing quote")
	}

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.raw,
		UserPublicKey:             walletAddress,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return buildFailed(fmt.Sprintf("marshal swap request: %v", err))
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap/v1/swap", payload)
	if err != nil {
		c.log.Debug().Err(err).Str("route", quote.RouteID).Msg("build failed")
		return buildFailed(err.Error())
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return buildFailed(fmt.Sprintf("malformed swap response: %v", err))
	}
	if resp.Error != "" {
		return buildFailed(resp.Error)
	}
	if resp.SwapTransaction == "" {
		return buildFailed("empty swap transaction")
	}

	return BuildResult{Tx: UnsignedTransaction(resp.SwapTransaction)}
}

// do waits for the limiter and performs one bounded request.
func (c *JupiterClient) do(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
