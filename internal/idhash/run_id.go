package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(strategy_id|symbols...|start_unix|end_unix)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	strategyID string,
	symbols []string,
	startUnix int64,
	endUnix int64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		strategyID,
		strings.Join(symbols, ","),
		startUnix,
		endUnix,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
