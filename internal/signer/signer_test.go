package signer

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-batch-trader/internal/domain"
	"solana-batch-trader/internal/solana/stub"
	"solana-batch-trader/internal/swap"
)

// unsignedTransfer builds a base64 unsigned transfer paid by payer.
func unsignedTransfer(t *testing.T, payer solana.PublicKey) swap.UnsignedTransaction {
	t.Helper()

	to := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1000, payer, to).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return swap.UnsignedTransaction(base64.StdEncoding.EncodeToString(raw))
}

func TestSignTransaction(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	unsigned := unsignedTransfer(t, key.PublicKey())

	signed, err := SignTransaction(unsigned, key)
	require.NoError(t, err)

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}

func TestSignTransaction_Errors(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	other := solana.NewWallet().PrivateKey

	_, err := SignTransaction("%%%not-base64", key)
	assert.True(t, errors.Is(err, ErrDecode), "got %v", err)

	_, err = SignTransaction(swap.UnsignedTransaction(base64.StdEncoding.EncodeToString([]byte{7})), key)
	assert.True(t, errors.Is(err, ErrDecode), "got %v", err)

	_, err = SignTransaction(unsignedTransfer(t, other.PublicKey()), key)
	assert.True(t, errors.Is(err, ErrSignerMissing), "got %v", err)
}

func TestSigner_SignAndSubmit(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	wallet := domain.NewWallet(key)
	rpc := stub.NewRPCClient()

	s := New(Options{RPC: rpc, Logger: zerolog.Nop()})

	res := s.SignAndSubmit(context.Background(), unsignedTransfer(t, key.PublicKey()), wallet)
	require.True(t, res.OK(), "failed: %s", res.Failed)
	assert.Equal(t, "stubsig1", res.Signature)
	require.Equal(t, 1, rpc.SentCount())

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rpc.Sent[0]))
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySignatures())
}

func TestSigner_SignAndSubmit_Failures(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	wallet := domain.NewWallet(key)

	t.Run("undecodable payload", func(t *testing.T) {
		rpc := stub.NewRPCClient()
		s := New(Options{RPC: rpc})

		res := s.SignAndSubmit(context.Background(), "AAAA", wallet)
		assert.False(t, res.OK())
		assert.NotEmpty(t, res.Failed)
		assert.Zero(t, rpc.SentCount())
	})

	t.Run("rejected by node", func(t *testing.T) {
		rpc := stub.NewRPCClient()
		rpc.SendErr = errors.New("Transaction simulation failed")
		s := New(Options{RPC: rpc})

		res := s.SignAndSubmit(context.Background(), unsignedTransfer(t, key.PublicKey()), wallet)
		assert.False(t, res.OK())
		assert.Contains(t, res.Failed, "simulation failed")
	})
}
