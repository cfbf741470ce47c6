package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|strategy_id|symbol|exit_date_unix|quantity)
// Returns hex-encoded hash (64 characters). Two runs over identical
// inputs always produce identical trade ids.
func ComputeTradeID(
	runID string,
	strategyID string,
	symbol string,
	exitDateUnix int64,
	quantity int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		runID,
		strategyID,
		symbol,
		exitDateUnix,
		quantity,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
