// Package signer signs provider-built transactions with a wallet key and submits them.
package signer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solana-batch-trader/internal/domain"
	solrpc "solana-batch-trader/internal/solana"
	"solana-batch-trader/internal/swap"
)

// DefaultCallTimeout bounds a single submission.
const DefaultCallTimeout = 5 * time.Second

var (
	// ErrDecode is returned when the unsigned payload is not a valid transaction.
	ErrDecode = errors.New("decode transaction")
	// ErrSignerMissing is returned when the wallet is not a required signer of the transaction.
	ErrSignerMissing = errors.New("wallet is not a required signer")
)

// Submitter signs and submits unsigned transactions.
type Submitter interface {
	SignAndSubmit(ctx context.Context, tx swap.UnsignedTransaction, wallet *domain.Wallet) SubmitResult
}

// SubmitResult is either a network-assigned Signature or a Failed reason.
// A signature means the submission endpoint accepted the transaction; it is not a confirmation.
type SubmitResult struct {
	Signature string
	Failed    string
}

// OK reports whether the transaction was accepted.
func (r SubmitResult) OK() bool { return r.Signature != "" && r.Failed == "" }

// Options configures a Signer.
type Options struct {
	RPC         solrpc.RPCClient
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

// Signer implements Submitter over a Solana RPC client.
type Signer struct {
	rpc         solrpc.RPCClient
	callTimeout time.Duration
	log         zerolog.Logger
}

var _ Submitter = (*Signer)(nil)

// New creates a Signer.
func New(opts Options) *Signer {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Signer{
		rpc:         opts.RPC,
		callTimeout: timeout,
		log:         opts.Logger.With().Str("component", "signer").Logger(),
	}
}

// SignAndSubmit decodes tx, signs it with the wallet key and submits it once.
func (s *Signer) SignAndSubmit(ctx context.Context, tx swap.UnsignedTransaction, wallet *domain.Wallet) SubmitResult {
	raw, err := SignTransaction(tx, wallet.Key)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet.Display()).Msg("sign failed")
		return SubmitResult{Failed: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	sig, err := s.rpc.SendTransaction(ctx, raw)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet.Display()).Msg("submit failed")
		return SubmitResult{Failed: fmt.Sprintf("submit: %v", err)}
	}

	return SubmitResult{Signature: sig}
}

// SignTransaction decodes a base64 transaction, adds the signature of key
// and returns the serialized signed transaction.
func SignTransaction(tx swap.UnsignedTransaction, key solana.PrivateKey) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(string(tx))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}

	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	pub := key.PublicKey()
	if !isSigner(decoded, pub) {
		return nil, fmt.Errorf("%w: %s", ErrSignerMissing, domain.DisplayAddress(pub.String()))
	}

	// Provider payloads carry zeroed placeholder signatures.
	decoded.Signatures = nil
	if _, err := decoded.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(pub) {
			return &key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	out, err := decoded.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return out, nil
}

func isSigner(tx *solana.Transaction, pub solana.PublicKey) bool {
	n := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(pub) {
			return true
		}
	}
	return false
}
