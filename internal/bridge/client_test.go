package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/signer"
	"solana-batch-trader/internal/swap"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	got  []swap.UnsignedTransaction
	fail string
}

func (f *fakeSubmitter) SignAndSubmit(_ context.Context, tx swap.UnsignedTransaction, _ *domain.Wallet) signer.SubmitResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, tx)
	if f.fail != "" {
		return signer.SubmitResult{Failed: f.fail}
	}
	return signer.SubmitResult{Signature: "txsig1"}
}

// serverScript drives one connection and reports what the client sent.
type serverScript func(t *testing.T, conn *websocket.Conn)

func newWSServer(t *testing.T, script serverScript) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(t, conn)
	})
	mux.HandleFunc("/count", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":3}`))
	})
	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"c1","address":null,"ip":"127.0.0.1","connectedAt":"t0","lastActiveAt":"t1"}]`))
	})
	mux.HandleFunc("/active-events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["addr1"]`))
	})
	mux.HandleFunc("/event", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "address": req["address"]})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]json.RawMessage
	if err := conn.ReadJSON(&m); err != nil {
		t.Errorf("read: %v", err)
		return nil
	}
	return m
}

func newTestWallet() *domain.Wallet {
	return domain.NewWallet(solana.NewWallet().PrivateKey)
}

func TestClient_SubscribeAndSignMessage(t *testing.T) {
	wallet := newTestWallet()
	results := make(chan map[string]json.RawMessage, 2)

	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		results <- readMsg(t, conn)
		conn.WriteJSON(map[string]interface{}{"type": "welcome"})
		conn.WriteJSON(map[string]interface{}{
			"type":          "request",
			"correlationId": "c-1",
			"payload":       map[string]string{"action": "signMessage", "message": "hello"},
		})
		results <- readMsg(t, conn)
	})

	c := New(Options{URL: wsURL(srv), Wallet: wallet, Tokens: []string{"mintA"}})
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StatusOpen, c.Status())

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()

	sub := <-results
	assert.JSONEq(t, `"subscribe"`, string(sub["type"]))
	assert.JSONEq(t, `"`+wallet.PublicAddress+`"`, string(sub["address"]))
	assert.JSONEq(t, `["mintA"]`, string(sub["tokens"]))

	resp := <-results
	assert.JSONEq(t, `"response"`, string(resp["type"]))
	assert.JSONEq(t, `"c-1"`, string(resp["correlationId"]))

	var res SignMessageResult
	require.NoError(t, json.Unmarshal(resp["result"], &res))
	sig, err := solana.SignatureFromBase58(res.Signature)
	require.NoError(t, err)
	assert.True(t, sig.Verify(wallet.Key.PublicKey(), []byte("hello")))

	select {
	case err := <-runErr:
		assert.Error(t, err, "server closed the connection")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestClient_SignTransaction(t *testing.T) {
	tests := []struct {
		name string
		fail string
		want SignTransactionResult
	}{
		{"submitted", "", SignTransactionResult{TxID: "txsig1"}},
		{"rejected", "blockhash not found", SignTransactionResult{Error: "blockhash not found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{fail: tt.fail}
			results := make(chan map[string]json.RawMessage, 1)

			srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
				readMsg(t, conn)
				conn.WriteJSON(map[string]interface{}{
					"type":          "request",
					"correlationId": "c-2",
					"payload":       map[string]string{"action": "signTransaction", "transaction": "AQID"},
				})
				results <- readMsg(t, conn)
			})

			c := New(Options{URL: wsURL(srv), Wallet: newTestWallet(), Submitter: sub})
			require.NoError(t, c.Connect(context.Background()))
			go c.Run(context.Background())

			resp := <-results
			var res SignTransactionResult
			require.NoError(t, json.Unmarshal(resp["result"], &res))
			assert.Equal(t, tt.want, res)
			sub.mu.Lock()
			assert.Equal(t, []swap.UnsignedTransaction{"AQID"}, sub.got)
			sub.mu.Unlock()
			c.Close()
		})
	}
}

func TestClient_CloseStopsRun(t *testing.T) {
	srv := newWSServer(t, func(t *testing.T, conn *websocket.Conn) {
		readMsg(t, conn)
		// Hold the connection until the client closes it.
		conn.ReadMessage()
	})

	c := New(Options{URL: wsURL(srv), Wallet: newTestWallet()})
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClient_RunWithoutConnect(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1", Wallet: newTestWallet()})
	assert.ErrorIs(t, c.Run(context.Background()), ErrNotConnected)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestClient_REST(t *testing.T) {
	srv := newWSServer(t, func(*testing.T, *websocket.Conn) {})
	c := New(Options{URL: wsURL(srv) + "/", Wallet: newTestWallet()})
	ctx := context.Background()

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	conns, err := c.Connections(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "c1", conns[0].ID)
	assert.Nil(t, conns[0].Address)

	active, err := c.ActiveEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"addr1"}, active)

	ev, err := c.TriggerEvent(ctx, "addr9")
	require.NoError(t, err)
	assert.True(t, ev.OK)
	assert.Equal(t, "addr9", ev.Address)
}
