// Package idhash derives deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(session_id|position_id|opened_at_ms|seq)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	sessionID string,
	positionID string,
	openedAtMs int64,
	seq int64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		sessionID,
		positionID,
		openedAtMs,
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeDiscoveryID computes a deterministic id for a discovery audit entry.
// Formula: SHA256(mint|source|discovered_at_ms)
func ComputeDiscoveryID(mint, source string, discoveredAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, source, discoveredAtMs)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
