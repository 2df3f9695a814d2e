package storage

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/interfaces"
)

// SyncStateStorage holds key/value watermarks: the inbox cursor and the
// last spool flush time.
type SyncStateStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewSyncStateStorage creates a sync state storage backed by the given engine.
func NewSyncStateStorage(db *DB, logger arbor.ILogger) interfaces.SyncStateStorage {
	return &SyncStateStorage{db: db, logger: logger}
}

func (s *SyncStateStorage) GetState(ctx context.Context, key string) (string, error) {
	query := s.db.rebind(`SELECT value FROM sync_state WHERE key = ?`)
	var value string
	if err := s.db.DB().QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		return "", classify(err)
	}
	return value, nil
}

func (s *SyncStateStorage) SetState(ctx context.Context, key, value string) error {
	query := s.db.rebind(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`)
	_, err := s.db.DB().ExecContext(ctx, query, key, value, time.Now().UTC().Unix())
	return classify(err)
}
