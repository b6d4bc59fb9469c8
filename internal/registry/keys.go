package registry

import (
	"bytes"
	"crypto/ed25519"
	"errors"

	"filippo.io/edwards25519"
	solana "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Credential validation errors.
var (
	ErrInvalidBase58    = errors.New("invalid base58 encoding")
	ErrInvalidKeyLength = errors.New("invalid secret key length")
	ErrInvalidPublicKey = errors.New("public key is not a valid ed25519 point")
	ErrKeyMismatch      = errors.New("public key does not match secret seed")
	ErrInvalidAddress   = errors.New("invalid token address")
)

// Key and address sizes in bytes.
const (
	secretKeySize = ed25519.PrivateKeySize // seed(32) | public key(32)
	addressSize   = ed25519.PublicKeySize
)

// DecodePrivateKey parses a base58 64-byte secret key and checks that its
// public half is a curve point derived from its seed.
func DecodePrivateKey(text string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(text)
	if err != nil {
		return nil, ErrInvalidBase58
	}
	if len(raw) != secretKeySize {
		return nil, ErrInvalidKeyLength
	}

	pub := raw[ed25519.SeedSize:]
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, ErrInvalidPublicKey
	}

	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], pub) {
		return nil, ErrKeyMismatch
	}

	return solana.PrivateKey(raw), nil
}

// ValidateAddress checks that text is a base58 encoded 32-byte account address.
// Program-derived addresses are off-curve, so no point check is made here.
func ValidateAddress(text string) error {
	raw, err := base58.Decode(text)
	if err != nil || len(raw) != addressSize {
		return ErrInvalidAddress
	}
	return nil
}
