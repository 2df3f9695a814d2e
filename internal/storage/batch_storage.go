package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// BatchStorage persists application batches. The single-open-batch
// invariant is enforced with a conditional write on the batch_lock row
// rather than an in-process mutex, so concurrent processes against the
// same store cannot both open.
type BatchStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewBatchStorage creates a batch storage backed by the given engine.
func NewBatchStorage(db *DB, logger arbor.ILogger) interfaces.BatchStorage {
	return &BatchStorage{db: db, logger: logger}
}

const batchColumns = `id, archetype, profile_state, status, started_at, completed_at, application_count`

func (s *BatchStorage) OpenBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		return common.ValidationError("batch.id", "is required")
	}
	if !batch.Archetype.Valid() {
		return common.ValidationError("batch.archetype", "is not a known archetype")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	// Claim the lock row. Zero rows affected means another batch holds it.
	lockQuery := s.db.rebind(`UPDATE batch_lock SET open_batch_id = ? WHERE id = 1 AND open_batch_id IS NULL`)
	result, err := tx.ExecContext(ctx, lockQuery, batch.ID)
	if err != nil {
		return classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: a batch is already open", common.ErrInvariant)
	}

	startedAt := batch.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	insertQuery := s.db.rebind(`
		INSERT INTO batches (id, archetype, profile_state, status, started_at, application_count)
		VALUES (?, ?, ?, ?, ?, 0)`)
	if _, err := tx.ExecContext(ctx, insertQuery,
		batch.ID, string(batch.Archetype), batch.ProfileState, string(models.BatchOpen), unixOf(startedAt)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}

	batch.Status = models.BatchOpen
	batch.StartedAt = startedAt

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("archetype", string(batch.Archetype)).
		Msg("Batch opened")
	return nil
}

func (s *BatchStorage) CloseBatch(ctx context.Context, id string, applicationCount int) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	query := s.db.rebind(`
		UPDATE batches SET status = ?, completed_at = ?, application_count = ?
		WHERE id = ? AND status = ?`)
	result, err := tx.ExecContext(ctx, query,
		string(models.BatchClosed), time.Now().UTC().Unix(), applicationCount, id, string(models.BatchOpen))
	if err != nil {
		return classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return common.NotFoundError("open batch", id)
	}

	releaseQuery := s.db.rebind(`UPDATE batch_lock SET open_batch_id = NULL WHERE id = 1 AND open_batch_id = ?`)
	if _, err := tx.ExecContext(ctx, releaseQuery, id); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}

	s.logger.Info().
		Str("batch_id", id).
		Int("applications", applicationCount).
		Msg("Batch closed")
	return nil
}

func (s *BatchStorage) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	query := s.db.rebind(`SELECT ` + batchColumns + ` FROM batches WHERE id = ?`)
	batch, err := scanBatch(s.db.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return batch, nil
}

func (s *BatchStorage) GetOpenBatch(ctx context.Context) (*models.Batch, error) {
	query := s.db.rebind(`SELECT ` + batchColumns + ` FROM batches WHERE status = ? LIMIT 1`)
	batch, err := scanBatch(s.db.DB().QueryRowContext(ctx, query, string(models.BatchOpen)))
	if err != nil {
		return nil, classify(err)
	}
	return batch, nil
}

func (s *BatchStorage) IncrementCount(ctx context.Context, id string) error {
	query := s.db.rebind(`UPDATE batches SET application_count = application_count + 1 WHERE id = ?`)
	_, err := s.db.DB().ExecContext(ctx, query, id)
	return classify(err)
}

func scanBatch(row rowScanner) (*models.Batch, error) {
	var (
		b           models.Batch
		archetype   string
		status      string
		startedAt   int64
		completedAt sql.NullInt64
	)

	err := row.Scan(&b.ID, &archetype, &b.ProfileState, &status, &startedAt, &completedAt, &b.ApplicationCount)
	if err != nil {
		return nil, err
	}

	b.Archetype = models.Archetype(archetype)
	b.Status = models.BatchStatus(status)
	b.StartedAt = timeOf(startedAt)
	b.CompletedAt = timePtrOf(completedAt)
	return &b, nil
}
