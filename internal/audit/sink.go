// Package audit defines the append-only sink that receives alerts,
// day-trade records, and risk-check entries. The engine only ever
// writes; it never reads audit entries back.
package audit

import (
	"context"
	"errors"
	"log"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// Sink receives compliance and risk artifacts as append-only writes.
type Sink interface {
	// RecordAlert appends one surveillance alert.
	RecordAlert(ctx context.Context, a *domain.SurveillanceAlert) error

	// RecordDayTrade appends one detected day-trade record.
	RecordDayTrade(ctx context.Context, r *domain.DayTradeRecord) error

	// RecordRiskCheck appends one failed risk-check audit entry.
	RecordRiskCheck(ctx context.Context, strategyID string, res domain.RiskCheckResult) error
}

// StoreSink persists audit entries through the storage layer.
type StoreSink struct {
	alerts    storage.AlertStore
	dayTrades storage.DayTradeStore
	logger    *log.Logger
}

// NewStoreSink creates a sink backed by alert and day-trade stores.
// Either store may be nil; writes to a nil store are dropped.
func NewStoreSink(alerts storage.AlertStore, dayTrades storage.DayTradeStore, logger *log.Logger) *StoreSink {
	return &StoreSink{alerts: alerts, dayTrades: dayTrades, logger: logger}
}

// Compile-time interface check.
var _ Sink = (*StoreSink)(nil)

// RecordAlert appends one surveillance alert. Duplicate alert ids are
// tolerated: detectors recompute from durable history, so re-scans
// legitimately produce the same alert again.
func (s *StoreSink) RecordAlert(ctx context.Context, a *domain.SurveillanceAlert) error {
	if s.alerts == nil {
		return nil
	}
	err := s.alerts.Insert(ctx, a)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// RecordDayTrade appends one detected day-trade record. Duplicates are
// tolerated for the same reason as alerts: status checks recompute
// records from durable history, so replays of the same record are
// routine.
func (s *StoreSink) RecordDayTrade(ctx context.Context, r *domain.DayTradeRecord) error {
	if s.dayTrades == nil {
		return nil
	}
	err := s.dayTrades.Insert(ctx, r)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// RecordRiskCheck logs one failed risk-check entry.
func (s *StoreSink) RecordRiskCheck(_ context.Context, strategyID string, res domain.RiskCheckResult) error {
	if s.logger != nil {
		s.logger.Printf("risk check failed strategy=%s check=%s severity=%s reason=%s",
			strategyID, res.Name, res.Severity, res.Reason)
	}
	return nil
}

// LogSink writes every audit entry to a logger. Used when no durable
// sink is configured.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a logger-backed sink.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Compile-time interface check.
var _ Sink = (*LogSink)(nil)

// RecordAlert logs one surveillance alert.
func (s *LogSink) RecordAlert(_ context.Context, a *domain.SurveillanceAlert) error {
	s.logger.Printf("alert type=%s severity=%s strategy=%s orders=%v: %s",
		a.Type, a.Severity, a.StrategyID, a.OrderIDs, a.Description)
	return nil
}

// RecordDayTrade logs one day-trade record.
func (s *LogSink) RecordDayTrade(_ context.Context, r *domain.DayTradeRecord) error {
	s.logger.Printf("day trade strategy=%s symbol=%s date=%s buy=%s sell=%s",
		r.StrategyID, r.Symbol, r.Date.Format("2006-01-02"), r.BuyOrderID, r.SellOrderID)
	return nil
}

// RecordRiskCheck logs one failed risk-check entry.
func (s *LogSink) RecordRiskCheck(_ context.Context, strategyID string, res domain.RiskCheckResult) error {
	s.logger.Printf("risk check failed strategy=%s check=%s severity=%s reason=%s",
		strategyID, res.Name, res.Severity, res.Reason)
	return nil
}

// NopSink discards every audit entry.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) RecordAlert(context.Context, *domain.SurveillanceAlert) error { return nil }
func (NopSink) RecordDayTrade(context.Context, *domain.DayTradeRecord) error { return nil }
func (NopSink) RecordRiskCheck(context.Context, string, domain.RiskCheckResult) error {
	return nil
}
