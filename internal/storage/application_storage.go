package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// ApplicationStorage persists applications and their outcome funnel.
type ApplicationStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewApplicationStorage creates an application storage backed by the given engine.
func NewApplicationStorage(db *DB, logger arbor.ILogger) interfaces.ApplicationStorage {
	return &ApplicationStorage{db: db, logger: logger}
}

const applicationColumns = `id, listing_id, batch_id, archetype, resume_version, applied_at,
	outcome_stage, outcome_at, selection_rationale, last_error`

func (s *ApplicationStorage) CreateApplication(ctx context.Context, app *models.Application) (int64, error) {
	if err := app.Validate(); err != nil {
		return 0, err
	}

	appliedAt := app.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}
	stage := app.OutcomeStage
	if stage == "" {
		stage = models.OutcomeSubmitted
	}

	query := s.db.rebind(`
		INSERT INTO applications (listing_id, batch_id, archetype, resume_version, applied_at, outcome_stage, selection_rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.DB().QueryRowContext(ctx, query,
		app.ListingID, app.BatchID, string(app.Archetype), app.ResumeVersion,
		unixOf(appliedAt), string(stage), app.SelectionRationale,
	).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}

	app.ID = id
	app.AppliedAt = appliedAt
	app.OutcomeStage = stage
	return id, nil
}

func (s *ApplicationStorage) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	query := s.db.rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`)
	app, err := scanApplication(s.db.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return app, nil
}

func (s *ApplicationStorage) GetApplicationByListing(ctx context.Context, listingID int64) (*models.Application, error) {
	query := s.db.rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE listing_id = ?`)
	app, err := scanApplication(s.db.DB().QueryRowContext(ctx, query, listingID))
	if err != nil {
		return nil, classify(err)
	}
	return app, nil
}

func (s *ApplicationStorage) ListByBatch(ctx context.Context, batchID string) ([]*models.Application, error) {
	query := s.db.rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE batch_id = ? ORDER BY applied_at ASC`)
	return s.queryApplications(ctx, query, batchID)
}

// ApplyOutcome advances the funnel stage. The priority comparison runs
// inside the UPDATE so concurrent writers cannot demote an outcome.
func (s *ApplicationStorage) ApplyOutcome(ctx context.Context, id int64, stage models.OutcomeStage, at time.Time) (bool, error) {
	if !stage.Valid() {
		return false, common.ValidationError("outcome_stage", "is not a known stage")
	}

	current, err := s.GetApplication(ctx, id)
	if err != nil {
		return false, err
	}
	if !stage.Supersedes(current.OutcomeStage) {
		s.logger.Debug().
			Int64("application_id", id).
			Str("current", string(current.OutcomeStage)).
			Str("proposed", string(stage)).
			Msg("Outcome update skipped, existing stage outranks proposed")
		return false, nil
	}

	// Guard against a concurrent writer that advanced the stage between
	// the read and this update.
	query := s.db.rebind(`
		UPDATE applications SET outcome_stage = ?, outcome_at = ?
		WHERE id = ? AND outcome_stage = ?`)
	result, err := s.db.DB().ExecContext(ctx, query, string(stage), unixOf(at), id, string(current.OutcomeStage))
	if err != nil {
		return false, classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// Lost the race; retry against the fresh stage.
		return s.ApplyOutcome(ctx, id, stage, at)
	}

	s.logger.Info().
		Int64("application_id", id).
		Str("stage", string(stage)).
		Msg("Application outcome advanced")
	return true, nil
}

// MarkGhost transitions submitted -> ghost. Any other current stage
// means a signal arrived and the application is not ghosted.
func (s *ApplicationStorage) MarkGhost(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := s.db.rebind(`
		UPDATE applications SET outcome_stage = ?, outcome_at = ?
		WHERE id = ? AND outcome_stage = ?`)
	result, err := s.db.DB().ExecContext(ctx, query,
		string(models.OutcomeGhost), unixOf(at), id, string(models.OutcomeSubmitted))
	if err != nil {
		return false, classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *ApplicationStorage) SetLastError(ctx context.Context, id int64, msg string) error {
	query := s.db.rebind(`UPDATE applications SET last_error = ? WHERE id = ?`)
	_, err := s.db.DB().ExecContext(ctx, query, msg, id)
	return classify(err)
}

func (s *ApplicationStorage) ListOpen(ctx context.Context) ([]*models.Application, error) {
	query := s.db.rebind(`
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE outcome_stage NOT IN (?, ?, ?)
		ORDER BY applied_at DESC`)
	return s.queryApplications(ctx, query,
		string(models.OutcomeRejected), string(models.OutcomeOffer), string(models.OutcomeGhost))
}

func (s *ApplicationStorage) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error) {
	query := s.db.rebind(`
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE outcome_stage = ? AND applied_at < ?
		ORDER BY applied_at ASC`)
	return s.queryApplications(ctx, query, string(models.OutcomeSubmitted), cutoff.Unix())
}

func (s *ApplicationStorage) FunnelCounts(ctx context.Context) (map[models.Archetype]map[models.OutcomeStage]int, error) {
	query := `SELECT archetype, outcome_stage, COUNT(*) FROM applications GROUP BY archetype, outcome_stage`
	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make(map[models.Archetype]map[models.OutcomeStage]int)
	for rows.Next() {
		var archetype, stage string
		var count int
		if err := rows.Scan(&archetype, &stage, &count); err != nil {
			return nil, err
		}
		a := models.Archetype(archetype)
		if out[a] == nil {
			out[a] = make(map[models.OutcomeStage]int)
		}
		out[a][models.OutcomeStage(stage)] = count
	}
	return out, rows.Err()
}

func (s *ApplicationStorage) VersionOutcomes(ctx context.Context) ([]*interfaces.VersionOutcome, error) {
	query := `
		SELECT archetype, resume_version, outcome_stage, COUNT(*)
		FROM applications
		GROUP BY archetype, resume_version, outcome_stage
		ORDER BY archetype, resume_version`
	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*interfaces.VersionOutcome
	for rows.Next() {
		var vo interfaces.VersionOutcome
		var archetype, stage string
		if err := rows.Scan(&archetype, &vo.ResumeVersion, &stage, &vo.Count); err != nil {
			return nil, err
		}
		vo.Archetype = models.Archetype(archetype)
		vo.Stage = models.OutcomeStage(stage)
		out = append(out, &vo)
	}
	return out, rows.Err()
}

func (s *ApplicationStorage) queryApplications(ctx context.Context, query string, args ...any) ([]*models.Application, error) {
	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		a         models.Application
		archetype string
		stage     string
		appliedAt int64
		outcomeAt sql.NullInt64
	)

	err := row.Scan(&a.ID, &a.ListingID, &a.BatchID, &archetype, &a.ResumeVersion,
		&appliedAt, &stage, &outcomeAt, &a.SelectionRationale, &a.LastError)
	if err != nil {
		return nil, err
	}

	a.Archetype = models.Archetype(archetype)
	a.OutcomeStage = models.OutcomeStage(stage)
	a.AppliedAt = timeOf(appliedAt)
	a.OutcomeAt = timePtrOf(outcomeAt)
	return &a, nil
}
