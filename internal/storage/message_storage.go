package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// MessageStorage persists inbound recruiter messages and their match
// attribution.
type MessageStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewMessageStorage creates a message storage backed by the given engine.
func NewMessageStorage(db *DB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{db: db, logger: logger}
}

const messageColumns = `id, external_message_id, source, sender, subject, body, received_at, sender_class,
	application_id, match_method, match_score, outcome, outcome_confidence, requires_manual_review, candidates`

func (s *MessageStorage) SaveMessage(ctx context.Context, msg *models.InboundMessage) (int64, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	method := msg.MatchMethod
	if method == "" {
		method = models.MatchNone
	}
	class := msg.SenderClass
	if class == "" {
		class = models.SenderUnknown
	}

	query := s.db.rebind(`
		INSERT INTO messages (external_message_id, source, sender, subject, body, received_at, sender_class,
			application_id, match_method, match_score, outcome, outcome_confidence, requires_manual_review, candidates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var appID sql.NullInt64
	if msg.ApplicationID != nil {
		appID = sql.NullInt64{Int64: *msg.ApplicationID, Valid: true}
	}

	var id int64
	err := s.db.DB().QueryRowContext(ctx, query,
		msg.ExternalMessageID, msg.Source, msg.Sender, msg.Subject, msg.Body,
		unixOf(receivedAt), string(class), appID, string(method), msg.MatchScore,
		string(msg.Outcome), msg.OutcomeConfidence, msg.RequiresManualReview,
		marshalJSON(msg.Candidates),
	).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}

	msg.ID = id
	msg.ReceivedAt = receivedAt
	msg.MatchMethod = method
	msg.SenderClass = class
	return id, nil
}

func (s *MessageStorage) GetMessage(ctx context.Context, id int64) (*models.InboundMessage, error) {
	query := s.db.rebind(`SELECT ` + messageColumns + ` FROM messages WHERE id = ?`)
	msg, err := scanMessage(s.db.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return msg, nil
}

func (s *MessageStorage) GetMessageByExternalID(ctx context.Context, source, externalID string) (*models.InboundMessage, error) {
	query := s.db.rebind(`SELECT ` + messageColumns + ` FROM messages WHERE source = ? AND external_message_id = ?`)
	msg, err := scanMessage(s.db.DB().QueryRowContext(ctx, query, source, externalID))
	if err != nil {
		return nil, classify(err)
	}
	return msg, nil
}

func (s *MessageStorage) UpdateMatch(ctx context.Context, msg *models.InboundMessage) error {
	query := s.db.rebind(`
		UPDATE messages SET application_id = ?, match_method = ?, match_score = ?,
			outcome = ?, outcome_confidence = ?, requires_manual_review = ?, candidates = ?
		WHERE id = ?`)

	var appID sql.NullInt64
	if msg.ApplicationID != nil {
		appID = sql.NullInt64{Int64: *msg.ApplicationID, Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, query,
		appID, string(msg.MatchMethod), msg.MatchScore,
		string(msg.Outcome), msg.OutcomeConfidence, msg.RequiresManualReview,
		marshalJSON(msg.Candidates), msg.ID)
	return classify(err)
}

func (s *MessageStorage) ListManualReview(ctx context.Context) ([]*models.InboundMessage, error) {
	query := s.db.rebind(`SELECT ` + messageColumns + ` FROM messages WHERE requires_manual_review = ? ORDER BY received_at DESC`)
	rows, err := s.db.DB().QueryContext(ctx, query, true)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.InboundMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *MessageStorage) CountMessages(ctx context.Context) (int, error) {
	var count int
	err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func scanMessage(row rowScanner) (*models.InboundMessage, error) {
	var (
		m          models.InboundMessage
		receivedAt int64
		class      string
		appID      sql.NullInt64
		method     string
		outcome    string
		candidates string
	)

	err := row.Scan(&m.ID, &m.ExternalMessageID, &m.Source, &m.Sender, &m.Subject, &m.Body,
		&receivedAt, &class, &appID, &method, &m.MatchScore,
		&outcome, &m.OutcomeConfidence, &m.RequiresManualReview, &candidates)
	if err != nil {
		return nil, err
	}

	m.ReceivedAt = timeOf(receivedAt)
	m.SenderClass = models.SenderClass(class)
	m.MatchMethod = models.MatchMethod(method)
	m.Outcome = models.OutcomeStage(outcome)
	if appID.Valid {
		m.ApplicationID = &appID.Int64
	}
	if candidates != "" && candidates != "[]" {
		_ = json.Unmarshal([]byte(candidates), &m.Candidates)
	}
	return &m, nil
}
