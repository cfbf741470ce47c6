package domain

// SignalAction represents the tagged decision of a signal source.
type SignalAction string

// Signal action constants.
const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

// TradeSignal represents one decision from an external signal source,
// modeled as a tagged variant with a confidence scalar. Malformed
// advisor payloads are rejected at the boundary and collapse to Hold
// before they reach the engine.
type TradeSignal struct {
	Action     SignalAction
	Confidence float64 // in [0,1]
	Reasoning  string
}

// HoldSignal is the safe fallback decision.
var HoldSignal = TradeSignal{Action: SignalHold}
