package postgres

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.SurveillanceAlert) error {
	query := `
		INSERT INTO surveillance_alerts (
			alert_id, strategy_id, alert_type, severity, description, alert_time, order_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AlertID, a.StrategyID, string(a.Type), string(a.Severity),
		a.Description, a.Timestamp, a.OrderIDs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetByStrategy retrieves all alerts for a strategy,
// ordered by timestamp ASC, alert_id ASC.
func (s *AlertStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.SurveillanceAlert, error) {
	query := `
		SELECT alert_id, strategy_id, alert_type, severity, description, alert_time, order_ids
		FROM surveillance_alerts
		WHERE strategy_id = $1
		ORDER BY alert_time ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get alerts by strategy: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.SurveillanceAlert
	for rows.Next() {
		var a domain.SurveillanceAlert
		var alertType, severity string

		err := rows.Scan(
			&a.AlertID, &a.StrategyID, &alertType, &severity,
			&a.Description, &a.Timestamp, &a.OrderIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		a.Type = domain.AlertType(alertType)
		a.Severity = domain.AlertSeverity(severity)
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
