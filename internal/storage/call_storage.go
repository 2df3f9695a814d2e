package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// CallStorage persists manually captured phone contacts.
type CallStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewCallStorage creates a call storage backed by the given engine.
func NewCallStorage(db *DB, logger arbor.ILogger) interfaces.CallStorage {
	return &CallStorage{db: db, logger: logger}
}

const callColumns = `id, caller_number, caller_name, entity, notes, occurred_at, application_id, outcome, requires_manual_review`

func (s *CallStorage) SaveCall(ctx context.Context, call *models.CallLog) (int64, error) {
	occurredAt := call.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	query := s.db.rebind(`
		INSERT INTO call_logs (caller_number, caller_name, entity, notes, occurred_at, application_id, outcome, requires_manual_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var appID sql.NullInt64
	if call.ApplicationID != nil {
		appID = sql.NullInt64{Int64: *call.ApplicationID, Valid: true}
	}

	var id int64
	err := s.db.DB().QueryRowContext(ctx, query,
		call.CallerNumber, call.CallerName, call.Entity, call.Notes,
		unixOf(occurredAt), appID, string(call.Outcome), call.RequiresManualReview,
	).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}

	call.ID = id
	call.OccurredAt = occurredAt
	return id, nil
}

func (s *CallStorage) ListCalls(ctx context.Context, limit int) ([]*models.CallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.rebind(`SELECT ` + callColumns + ` FROM call_logs ORDER BY occurred_at DESC LIMIT ?`)
	rows, err := s.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.CallLog
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

func (s *CallStorage) UpdateCallMatch(ctx context.Context, call *models.CallLog) error {
	query := s.db.rebind(`
		UPDATE call_logs SET application_id = ?, outcome = ?, requires_manual_review = ?
		WHERE id = ?`)

	var appID sql.NullInt64
	if call.ApplicationID != nil {
		appID = sql.NullInt64{Int64: *call.ApplicationID, Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, query,
		appID, string(call.Outcome), call.RequiresManualReview, call.ID)
	return classify(err)
}

func scanCall(row rowScanner) (*models.CallLog, error) {
	var (
		c          models.CallLog
		occurredAt int64
		appID      sql.NullInt64
		outcome    string
	)

	err := row.Scan(&c.ID, &c.CallerNumber, &c.CallerName, &c.Entity, &c.Notes,
		&occurredAt, &appID, &outcome, &c.RequiresManualReview)
	if err != nil {
		return nil, err
	}

	c.OccurredAt = timeOf(occurredAt)
	c.Outcome = models.OutcomeStage(outcome)
	if appID.Valid {
		c.ApplicationID = &appID.Int64
	}
	return &c, nil
}
