package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEntryKey computes a deterministic storage key for a trade log entry.
// Formula: SHA256(run_id|sequence)
// Returns hex-encoded hash (64 characters).
//
// Failed entries carry a millisecond timestamp as ID, which is not unique
// across wallets processed within the same millisecond; the key is.
func ComputeEntryKey(runID string, sequence int) string {
	data := fmt.Sprintf("%s|%d", runID, sequence)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
