package storage

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// AlertStorage persists drift alerts.
type AlertStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewAlertStorage creates an alert storage backed by the given engine.
func NewAlertStorage(db *DB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{db: db, logger: logger}
}

const alertColumns = `id, archetype, alert_type, metric_value, threshold_value, details, acknowledged, created_at`

func (s *AlertStorage) SaveAlert(ctx context.Context, alert *models.DriftAlert) error {
	if alert.ID == "" {
		alert.ID = common.NewAlertID()
	}
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := s.db.rebind(`
		INSERT INTO drift_alerts (id, archetype, alert_type, metric_value, threshold_value, details, acknowledged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.DB().ExecContext(ctx, query,
		alert.ID, string(alert.Archetype), string(alert.Type),
		alert.MetricValue, alert.ThresholdValue, alert.Details,
		alert.Acknowledged, unixOf(createdAt))
	if err != nil {
		return classify(err)
	}

	alert.CreatedAt = createdAt
	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("archetype", string(alert.Archetype)).
		Str("type", string(alert.Type)).
		Float64("metric", alert.MetricValue).
		Msg("Drift alert recorded")
	return nil
}

func (s *AlertStorage) GetAlert(ctx context.Context, id string) (*models.DriftAlert, error) {
	query := s.db.rebind(`SELECT ` + alertColumns + ` FROM drift_alerts WHERE id = ?`)
	alert, err := scanAlert(s.db.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return alert, nil
}

func (s *AlertStorage) LatestUnacknowledged(ctx context.Context, archetype models.Archetype, alertType models.AlertType) (*models.DriftAlert, error) {
	query := s.db.rebind(`
		SELECT ` + alertColumns + ` FROM drift_alerts
		WHERE archetype = ? AND alert_type = ? AND acknowledged = ?
		ORDER BY created_at DESC LIMIT 1`)
	alert, err := scanAlert(s.db.DB().QueryRowContext(ctx, query, string(archetype), string(alertType), false))
	if err != nil {
		return nil, classify(err)
	}
	return alert, nil
}

func (s *AlertStorage) ListAlerts(ctx context.Context, includeAcknowledged bool) ([]*models.DriftAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM drift_alerts ORDER BY created_at DESC`
	args := []any{}
	if !includeAcknowledged {
		query = s.db.rebind(`SELECT ` + alertColumns + ` FROM drift_alerts WHERE acknowledged = ? ORDER BY created_at DESC`)
		args = append(args, false)
	}

	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.DriftAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func (s *AlertStorage) Acknowledge(ctx context.Context, id string) error {
	query := s.db.rebind(`UPDATE drift_alerts SET acknowledged = ? WHERE id = ?`)
	result, err := s.db.DB().ExecContext(ctx, query, true, id)
	if err != nil {
		return classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return common.NotFoundError("alert", id)
	}
	return nil
}

func scanAlert(row rowScanner) (*models.DriftAlert, error) {
	var (
		a         models.DriftAlert
		archetype string
		alertType string
		createdAt int64
	)

	err := row.Scan(&a.ID, &archetype, &alertType, &a.MetricValue, &a.ThresholdValue,
		&a.Details, &a.Acknowledged, &createdAt)
	if err != nil {
		return nil, err
	}

	a.Archetype = models.Archetype(archetype)
	a.Type = models.AlertType(alertType)
	a.CreatedAt = timeOf(createdAt)
	return &a, nil
}
