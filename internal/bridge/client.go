// Package bridge connects a wallet to a remote signing service over WebSocket.
// The service pushes signing requests; the client answers them with the
// wallet key and submits signed transactions through the Submitter.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/signer"
	"solana-batch-trader/internal/swap"
)

// Default configuration values.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultCallTimeout      = 10 * time.Second
)

// Request actions.
const (
	ActionSignMessage     = "signMessage"
	ActionSignTransaction = "signTransaction"
)

// Connection states reported by Status.
const (
	StatusDisconnected = "disconnected"
	StatusOpen         = "open"
	StatusClosing      = "closing"
)

// ErrNotConnected is returned when a write is attempted without a connection.
var ErrNotConnected = errors.New("bridge not connected")

// Options configures a Client.
type Options struct {
	URL       string // ws:// or wss:// endpoint
	Wallet    *domain.Wallet
	Tokens    []string
	Submitter signer.Submitter

	HTTPClient  *http.Client
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// Client is a signing-service WebSocket client.
type Client struct {
	url       string
	restURL   string
	wallet    *domain.Wallet
	tokens    []string
	submitter signer.Submitter
	http      *http.Client
	timeout   time.Duration
	log       zerolog.Logger

	connMu  sync.Mutex
	conn    *websocket.Conn
	closing bool
	writeMu sync.Mutex
}

// New creates a Client. Connect must be called before Run.
func New(opts Options) *Client {
	url := strings.TrimSuffix(opts.URL, "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultCallTimeout}
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	return &Client{
		url:       url,
		restURL:   "http" + strings.TrimPrefix(url, "ws"),
		wallet:    opts.Wallet,
		tokens:    tokens,
		submitter: opts.Submitter,
		http:      httpClient,
		timeout:   timeout,
		log:       opts.Logger.With().Str("component", "bridge").Str("wallet", opts.Wallet.Display()).Logger(),
	}
}

// message is the envelope for both directions.
type message struct {
	Type          string          `json:"type"`
	Address       string          `json:"address,omitempty"`
	Tokens        []string        `json:"tokens,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       *requestPayload `json:"payload,omitempty"`
	Result        interface{}     `json:"result,omitempty"`
}

type requestPayload struct {
	Action      string `json:"action"`
	Message     string `json:"message,omitempty"`
	Transaction string `json:"transaction,omitempty"`
}

// SignMessageResult answers a signMessage request.
type SignMessageResult struct {
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SignTransactionResult answers a signTransaction request.
type SignTransactionResult struct {
	TxID  string `json:"txid,omitempty"`
	Error string `json:"error,omitempty"`
}

// Connect dials the service, replacing any previous connection, and subscribes the wallet.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.closing = false
	c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.log.Info().Msg("connected")
	return c.send(message{Type: "subscribe", Address: c.wallet.PublicAddress, Tokens: c.tokens})
}

// Run reads messages until the connection closes or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closing := c.closing
			c.connMu.Unlock()

			if closing || ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Msg("connection closed")
			return fmt.Errorf("read: %w", err)
		}
		c.handleMessage(ctx, data)
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn().Err(err).Msg("invalid message")
		return
	}

	switch msg.Type {
	case "welcome":
		c.log.Debug().Msg("welcome")
	case "subscribed":
		c.log.Info().Str("address", domain.DisplayAddress(msg.Address)).Msg("subscribed")
	case "request":
		if msg.Payload == nil {
			return
		}
		c.handleRequest(ctx, msg.CorrelationID, *msg.Payload)
	}
}

func (c *Client) handleRequest(ctx context.Context, correlationID string, p requestPayload) {
	log := c.log.With().Str("correlation_id", correlationID).Str("action", p.Action).Logger()

	var result interface{}
	switch p.Action {
	case ActionSignMessage:
		result = c.signMessage(p.Message)
	case ActionSignTransaction:
		result = c.signTransaction(ctx, p.Transaction)
	default:
		log.Warn().Msg("unknown action")
		return
	}

	if err := c.send(message{Type: "response", CorrelationID: correlationID, Result: result}); err != nil {
		log.Warn().Err(err).Msg("reply failed")
		return
	}
	log.Info().Msg("request answered")
}

func (c *Client) signMessage(text string) SignMessageResult {
	sig, err := c.wallet.Key.Sign([]byte(text))
	if err != nil {
		return SignMessageResult{Error: err.Error()}
	}
	return SignMessageResult{Signature: sig.String()}
}

func (c *Client) signTransaction(ctx context.Context, tx string) SignTransactionResult {
	if c.submitter == nil {
		return SignTransactionResult{Error: "submission disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res := c.submitter.SignAndSubmit(ctx, swap.UnsignedTransaction(tx), c.wallet)
	if !res.OK() {
		return SignTransactionResult{Error: res.Failed}
	}
	return SignTransactionResult{TxID: res.Signature}
}

func (c *Client) send(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Status reports the connection state.
func (c *Client) Status() string {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	switch {
	case c.conn == nil:
		return StatusDisconnected
	case c.closing:
		return StatusClosing
	default:
		return StatusOpen
	}
}

// Address returns the public address of the bridged wallet.
func (c *Client) Address() string {
	return c.wallet.PublicAddress
}

// Close closes the connection. Run returns nil after Close.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.closing = true

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return c.conn.Close()
}
