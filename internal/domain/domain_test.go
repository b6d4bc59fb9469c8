package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func TestDisplayAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"So11111111111111111111111111111111111111112", "So111111..."},
		{"short", "short..."},
		{"12345678", "12345678..."},
	}
	for _, tt := range tests {
		if got := DisplayAddress(tt.in); got != tt.want {
			t.Errorf("DisplayAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirectionIsValid(t *testing.T) {
	if !DirectionBuy.IsValid() || !DirectionSell.IsValid() {
		t.Fatal("buy and sell must be valid")
	}
	if Direction("hold").IsValid() {
		t.Error("unexpected valid direction")
	}
}

func TestAmountModeIsValid(t *testing.T) {
	if !AmountModePercent.IsValid() || !AmountModeFiat.IsValid() {
		t.Fatal("percent and fiat must be valid")
	}
	if AmountMode("").IsValid() {
		t.Error("empty mode must be invalid")
	}
}

func TestWalletVolume(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	w := NewWallet(solana.PrivateKey(priv))

	if w.PublicAddress != solana.PrivateKey(priv).PublicKey().String() {
		t.Errorf("PublicAddress = %s", w.PublicAddress)
	}
	w.AddVolume(decimal.RequireFromString("0.5"))
	w.AddVolume(decimal.RequireFromString("1.25"))
	if got := w.CumulativeVolume(); !got.Equal(decimal.RequireFromString("1.75")) {
		t.Errorf("CumulativeVolume = %s, want 1.75", got)
	}
}

func TestTradeLogEntrySucceeded(t *testing.T) {
	ok := TradeLogEntry{Status: StatusSuccess}
	failed := TradeLogEntry{Status: StatusFailed, TransactionHash: FailedTxHash}
	if !ok.Succeeded() || failed.Succeeded() {
		t.Error("Succeeded mismatch")
	}
}
