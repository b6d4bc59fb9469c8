package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"solana-batch-trader/internal/domain"
)

// readWallets returns the wallet import text. Path "-" reads keys from the
// terminal without echo, one per line, until an empty line.
func readWallets(path string, in *os.File, prompt io.Writer) (string, error) {
	if path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	var keys []string
	for {
		fmt.Fprintf(prompt, "private key %d (empty to finish): ", len(keys)+1)
		line, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		key := strings.TrimSpace(string(line))
		if key == "" {
			break
		}
		keys = append(keys, key)
	}
	return strings.Join(keys, "\n"), nil
}

// entryPrinter writes entries to stdout as they are produced.
type entryPrinter struct {
	out     io.Writer
	jsonOut bool
	enc     *json.Encoder
}

func newEntryPrinter(out io.Writer, jsonOut bool) *entryPrinter {
	return &entryPrinter{out: out, jsonOut: jsonOut, enc: json.NewEncoder(out)}
}

// Print writes one entry.
func (p *entryPrinter) Print(e domain.TradeLogEntry) {
	if p.jsonOut {
		p.enc.Encode(e)
		return
	}
	fmt.Fprintf(p.out, "%-4s %-7s wallet=%s token=%s amount=%g tx=%s",
		e.Direction, e.Status, e.WalletAddressDisplay, e.TokenAddressDisplay, e.Amount, e.TransactionHash)
	if e.Error != "" {
		fmt.Fprintf(p.out, " error=%q", e.Error)
	}
	fmt.Fprintln(p.out)
}

// Summary writes run statistics.
func (p *entryPrinter) Summary(s domain.TradeStats) {
	if p.jsonOut {
		p.enc.Encode(s)
		return
	}
	fmt.Fprintf(p.out, "total=%d success=%d failed=%d rate=%.1f%% volume=%g\n",
		s.TotalTrades, s.SuccessfulTrades, s.FailedTrades, s.SuccessRate, s.TotalVolume)
}
