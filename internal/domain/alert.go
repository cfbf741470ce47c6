package domain

import "time"

// AlertType classifies a detected trading anomaly.
type AlertType string

// Alert type constants.
const (
	AlertWashTrading       AlertType = "wash_trading"
	AlertLayering          AlertType = "layering"
	AlertExcessiveVelocity AlertType = "excessive_velocity"
	AlertSpoofing          AlertType = "spoofing"
	AlertDayTradeLimit     AlertType = "day_trade_limit"
	AlertRiskCheck         AlertType = "risk_check"
)

// AlertSeverity ranks an alert. High and critical alerts are
// auto-forwarded to the audit sink.
type AlertSeverity string

// Alert severity constants.
const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AutoReport reports whether the severity crosses the auto-reporting
// threshold.
func (s AlertSeverity) AutoReport() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// SurveillanceAlert represents one detected anomaly in an order history.
type SurveillanceAlert struct {
	AlertID     string // deterministic hash, see idhash
	StrategyID  string
	Type        AlertType
	Severity    AlertSeverity
	Description string
	Timestamp   time.Time
	OrderIDs    []string // referenced order records
}

// DayTradeRecord represents one detected same-day round trip: a filled
// buy and a filled sell of the same symbol on the same calendar date.
type DayTradeRecord struct {
	Date        time.Time
	StrategyID  string
	Symbol      string
	BuyOrderID  string
	SellOrderID string
}
