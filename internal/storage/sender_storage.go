package storage

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// SenderStorage persists the learned sender -> entity mapping and the
// ignore list.
type SenderStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewSenderStorage creates a sender storage backed by the given engine.
func NewSenderStorage(db *DB, logger arbor.ILogger) interfaces.SenderStorage {
	return &SenderStorage{db: db, logger: logger}
}

func (s *SenderStorage) GetSender(ctx context.Context, address string) (*models.KnownSender, error) {
	query := s.db.rebind(`
		SELECT id, address, entity, class, first_seen, last_seen, match_count
		FROM known_senders WHERE address = ?`)

	var (
		sender    models.KnownSender
		class     string
		firstSeen int64
		lastSeen  int64
	)
	err := s.db.DB().QueryRowContext(ctx, query, strings.ToLower(address)).Scan(
		&sender.ID, &sender.Address, &sender.Entity, &class, &firstSeen, &lastSeen, &sender.MatchCount)
	if err != nil {
		return nil, classify(err)
	}

	sender.Class = models.SenderClass(class)
	sender.FirstSeen = timeOf(firstSeen)
	sender.LastSeen = timeOf(lastSeen)
	return &sender, nil
}

func (s *SenderStorage) UpsertSender(ctx context.Context, sender *models.KnownSender) error {
	now := time.Now().UTC().Unix()
	class := sender.Class
	if class == "" {
		class = models.SenderUnknown
	}

	query := s.db.rebind(`
		INSERT INTO known_senders (address, entity, class, first_seen, last_seen, match_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			entity = excluded.entity,
			class = excluded.class,
			last_seen = excluded.last_seen,
			match_count = known_senders.match_count + 1`)

	_, err := s.db.DB().ExecContext(ctx, query,
		strings.ToLower(sender.Address), sender.Entity, string(class), now, now)
	if err != nil {
		return classify(err)
	}

	s.logger.Debug().
		Str("address", sender.Address).
		Str("entity", sender.Entity).
		Msg("Known sender upserted")
	return nil
}

func (s *SenderStorage) ListSenders(ctx context.Context) ([]*models.KnownSender, error) {
	query := `SELECT id, address, entity, class, first_seen, last_seen, match_count FROM known_senders ORDER BY last_seen DESC`
	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.KnownSender
	for rows.Next() {
		var (
			sender    models.KnownSender
			class     string
			firstSeen int64
			lastSeen  int64
		)
		if err := rows.Scan(&sender.ID, &sender.Address, &sender.Entity, &class, &firstSeen, &lastSeen, &sender.MatchCount); err != nil {
			return nil, err
		}
		sender.Class = models.SenderClass(class)
		sender.FirstSeen = timeOf(firstSeen)
		sender.LastSeen = timeOf(lastSeen)
		out = append(out, &sender)
	}
	return out, rows.Err()
}

// IsIgnored matches the full address first, then its domain.
func (s *SenderStorage) IsIgnored(ctx context.Context, address string) (bool, error) {
	address = strings.ToLower(address)
	domain := ""
	if at := strings.LastIndexByte(address, '@'); at >= 0 {
		domain = address[at+1:]
	}

	query := s.db.rebind(`SELECT COUNT(*) FROM sender_ignore WHERE pattern = ? OR pattern = ?`)
	var count int
	if err := s.db.DB().QueryRowContext(ctx, query, address, domain).Scan(&count); err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

func (s *SenderStorage) AddIgnore(ctx context.Context, pattern string) error {
	query := s.db.rebind(`INSERT INTO sender_ignore (pattern) VALUES (?) ON CONFLICT(pattern) DO NOTHING`)
	_, err := s.db.DB().ExecContext(ctx, query, strings.ToLower(pattern))
	return classify(err)
}
