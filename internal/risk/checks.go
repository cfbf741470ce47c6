package risk

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/audit"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// Pre-trade check names. Checks run in this order and none is skippable.
const (
	CheckPositionSize  = "position_size_limit"
	CheckExposure      = "aggregate_exposure"
	CheckPositionCount = "position_count"
	CheckPriceSanity   = "price_sanity"
	CheckConfidence    = "signal_confidence"
)

// TradeRequest describes one candidate trade for pre-trade validation.
type TradeRequest struct {
	StrategyID   string
	Symbol       string
	Quantity     int64
	Price        float64
	Confidence   float64
	AccountValue decimal.Decimal
	OpenExposure decimal.Decimal // notional of currently open positions
	OpenPositions int
}

// Engine evaluates candidate trades against the configured limits.
// It is read-only with respect to persisted state and safe to call
// concurrently for different strategies.
type Engine struct {
	limits  Limits
	sink    audit.Sink
	logger  *log.Logger
	metrics *observability.Metrics
}

// NewEngine creates a risk engine. sink may be nil to disable audit
// forwarding; logger and metrics may be nil.
func NewEngine(limits Limits, sink audit.Sink, logger *log.Logger, metrics *observability.Metrics) *Engine {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Engine{limits: limits, sink: sink, logger: logger, metrics: metrics}
}

// ValidateTrade runs the ordered pre-trade checks. All checks execute
// regardless of earlier failures; approval requires every check to
// pass. High and critical failures are forwarded to the audit sink.
// A failed check is a rejection, never an error.
func (e *Engine) ValidateTrade(ctx context.Context, req TradeRequest) (bool, []domain.RiskCheckResult) {
	results := []domain.RiskCheckResult{
		e.checkPositionSize(req),
		e.checkExposure(req),
		e.checkPositionCount(req),
		e.checkPriceSanity(req),
		e.checkConfidence(req),
	}

	approved := true
	for _, res := range results {
		if res.Passed {
			continue
		}
		approved = false
		if e.metrics != nil {
			e.metrics.RiskChecksFailed.WithLabelValues(res.Name).Inc()
		}
		if e.logger != nil {
			e.logger.Printf("pre-trade check %s failed for %s: %s", res.Name, req.Symbol, res.Reason)
		}
		if res.Severity.AutoReport() {
			if err := e.sink.RecordRiskCheck(ctx, req.StrategyID, res); err != nil && e.logger != nil {
				e.logger.Printf("audit sink write failed: %v", err)
			}
		}
	}
	return approved, results
}

// DailyLossBreached applies the configured daily loss limit to the day
// state. The halt transition is counted once per day; later calls see
// the latched state without re-counting.
func (e *Engine) DailyLossBreached(s *DayState) bool {
	already := s.Halted()
	breached := s.BreachedDailyLoss(e.limits.DailyLossLimitPct)
	if breached && !already {
		if e.metrics != nil {
			e.metrics.CircuitBreakerHits.Inc()
		}
		if e.logger != nil {
			e.logger.Printf("daily loss circuit breaker tripped, trading halted until next day open")
		}
	}
	return breached
}

// checkPositionSize verifies order notional against the per-position
// limit. A notional exactly at the limit passes; one basis point over
// fails.
func (e *Engine) checkPositionSize(req TradeRequest) domain.RiskCheckResult {
	notional := decimal.NewFromInt(req.Quantity).Mul(decimal.NewFromFloat(req.Price))
	limit := req.AccountValue.Mul(decimal.NewFromFloat(e.limits.MaxPositionPct))

	if notional.GreaterThan(limit) {
		return domain.RiskCheckResult{
			Name:     CheckPositionSize,
			Passed:   false,
			Reason:   fmt.Sprintf("order notional %s exceeds position limit %s", notional, limit),
			Severity: domain.SeverityHigh,
		}
	}
	return domain.RiskCheckResult{Name: CheckPositionSize, Passed: true}
}

// checkExposure verifies aggregate open exposure including the new
// order against the hard ceiling.
func (e *Engine) checkExposure(req TradeRequest) domain.RiskCheckResult {
	notional := decimal.NewFromInt(req.Quantity).Mul(decimal.NewFromFloat(req.Price))
	total := req.OpenExposure.Add(notional)
	ceiling := req.AccountValue.Mul(decimal.NewFromFloat(e.limits.MaxExposurePct))

	if total.GreaterThan(ceiling) {
		return domain.RiskCheckResult{
			Name:     CheckExposure,
			Passed:   false,
			Reason:   fmt.Sprintf("aggregate exposure %s would exceed ceiling %s", total, ceiling),
			Severity: domain.SeverityCritical,
		}
	}
	return domain.RiskCheckResult{Name: CheckExposure, Passed: true}
}

// checkPositionCount verifies the open position cap.
func (e *Engine) checkPositionCount(req TradeRequest) domain.RiskCheckResult {
	if req.OpenPositions >= e.limits.MaxOpenPositions {
		return domain.RiskCheckResult{
			Name:     CheckPositionCount,
			Passed:   false,
			Reason:   fmt.Sprintf("open position count %d at cap %d", req.OpenPositions, e.limits.MaxOpenPositions),
			Severity: domain.SeverityMedium,
		}
	}
	return domain.RiskCheckResult{Name: CheckPositionCount, Passed: true}
}

// checkPriceSanity verifies the price is positive and finite.
func (e *Engine) checkPriceSanity(req TradeRequest) domain.RiskCheckResult {
	if req.Price <= 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
		return domain.RiskCheckResult{
			Name:     CheckPriceSanity,
			Passed:   false,
			Reason:   fmt.Sprintf("price %f is not a positive finite number", req.Price),
			Severity: domain.SeverityCritical,
		}
	}
	return domain.RiskCheckResult{Name: CheckPriceSanity, Passed: true}
}

// checkConfidence verifies the signal confidence threshold.
func (e *Engine) checkConfidence(req TradeRequest) domain.RiskCheckResult {
	if req.Confidence < e.limits.MinConfidence {
		return domain.RiskCheckResult{
			Name:     CheckConfidence,
			Passed:   false,
			Reason:   fmt.Sprintf("signal confidence %.2f below threshold %.2f", req.Confidence, e.limits.MinConfidence),
			Severity: domain.SeverityLow,
		}
	}
	return domain.RiskCheckResult{Name: CheckConfidence, Passed: true}
}
