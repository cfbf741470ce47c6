package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeAlertID computes a deterministic alert_id using SHA256.
// Formula: SHA256(alert_type|strategy_id|timestamp_unix|order_ids...)
// Re-running a detector over the same order history yields the same
// alert ids, so append-only alert stores stay idempotent.
func ComputeAlertID(
	alertType string,
	strategyID string,
	timestampUnix int64,
	orderIDs []string,
) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		alertType,
		strategyID,
		timestampUnix,
		strings.Join(orderIDs, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
