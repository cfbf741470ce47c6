package signal

import (
	"encoding/json"
	"strings"

	"strategy-lab/internal/domain"
)

// advisorResponse mirrors the loosely-typed JSON an advisor returns.
type advisorResponse struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseAdvisorResponse validates a raw advisor payload at the boundary
// and converts it into a tagged TradeSignal. Malformed payloads,
// unknown actions, and out-of-range confidence values all collapse to
// Hold so they can never reach the engine as actionable decisions.
func ParseAdvisorResponse(raw []byte) domain.TradeSignal {
	var resp advisorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.HoldSignal
	}

	var action domain.SignalAction
	switch strings.ToLower(strings.TrimSpace(resp.Action)) {
	case "buy":
		action = domain.SignalBuy
	case "sell":
		action = domain.SignalSell
	case "hold":
		action = domain.SignalHold
	default:
		return domain.HoldSignal
	}

	if resp.Confidence < 0 || resp.Confidence > 1 {
		return domain.HoldSignal
	}

	return domain.TradeSignal{
		Action:     action,
		Confidence: resp.Confidence,
		Reasoning:  resp.Reasoning,
	}
}
