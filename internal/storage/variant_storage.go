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

// VariantStorage persists the per-archetype resume variants.
type VariantStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewVariantStorage creates a variant storage backed by the given engine.
func NewVariantStorage(db *DB, logger arbor.ILogger) interfaces.VariantStorage {
	return &VariantStorage{db: db, logger: logger}
}

const variantColumns = `archetype, file_path, current_version, embedding, embedding_model, embedding_dim,
	alignment_score, last_rewritten, updated_at`

func (s *VariantStorage) UpsertVariant(ctx context.Context, variant *models.ResumeVariant) error {
	if !variant.Archetype.Valid() {
		return common.ValidationError("variant.archetype", "is not a known archetype")
	}

	query := s.db.rebind(`
		INSERT INTO resume_variants (archetype, file_path, current_version, embedding, embedding_model, embedding_dim, alignment_score, last_rewritten, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(archetype) DO UPDATE SET
			file_path = excluded.file_path,
			current_version = excluded.current_version,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			embedding_dim = excluded.embedding_dim,
			alignment_score = excluded.alignment_score,
			last_rewritten = excluded.last_rewritten,
			updated_at = excluded.updated_at`)

	_, err := s.db.DB().ExecContext(ctx, query,
		string(variant.Archetype), variant.FilePath, variant.CurrentVersion,
		encodeVector(variant.Embedding), variant.EmbeddingModel, len(variant.Embedding),
		variant.AlignmentScore, nullUnixOf(variant.LastRewritten), time.Now().UTC().Unix())
	if err != nil {
		return classify(err)
	}

	s.logger.Debug().
		Str("archetype", string(variant.Archetype)).
		Str("version", variant.CurrentVersion).
		Msg("Resume variant upserted")
	return nil
}

func (s *VariantStorage) GetVariant(ctx context.Context, archetype models.Archetype) (*models.ResumeVariant, error) {
	query := s.db.rebind(`SELECT ` + variantColumns + ` FROM resume_variants WHERE archetype = ?`)
	variant, err := scanVariant(s.db.DB().QueryRowContext(ctx, query, string(archetype)))
	if err != nil {
		return nil, classify(err)
	}
	return variant, nil
}

func (s *VariantStorage) ListVariants(ctx context.Context) ([]*models.ResumeVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM resume_variants ORDER BY archetype`
	rows, err := s.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.ResumeVariant
	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, variant)
	}
	return out, rows.Err()
}

func (s *VariantStorage) UpdateAlignment(ctx context.Context, archetype models.Archetype, alignment float64) error {
	query := s.db.rebind(`UPDATE resume_variants SET alignment_score = ?, updated_at = ? WHERE archetype = ?`)
	_, err := s.db.DB().ExecContext(ctx, query, alignment, time.Now().UTC().Unix(), string(archetype))
	return classify(err)
}

func (s *VariantStorage) MarkRewritten(ctx context.Context, archetype models.Archetype, version string, at time.Time) error {
	query := s.db.rebind(`
		UPDATE resume_variants SET current_version = ?, last_rewritten = ?, updated_at = ?
		WHERE archetype = ?`)
	_, err := s.db.DB().ExecContext(ctx, query, version, unixOf(at), time.Now().UTC().Unix(), string(archetype))
	return classify(err)
}

func scanVariant(row rowScanner) (*models.ResumeVariant, error) {
	var (
		v             models.ResumeVariant
		archetype     string
		embedding     []byte
		embeddingDim  int
		lastRewritten sql.NullInt64
		updatedAt     int64
	)

	err := row.Scan(&archetype, &v.FilePath, &v.CurrentVersion, &embedding, &v.EmbeddingModel,
		&embeddingDim, &v.AlignmentScore, &lastRewritten, &updatedAt)
	if err != nil {
		return nil, err
	}

	v.Archetype = models.Archetype(archetype)
	v.LastRewritten = timePtrOf(lastRewritten)
	v.UpdatedAt = timeOf(updatedAt)

	if len(embedding) > 0 {
		vec, err := decodeVector(embedding, embeddingDim)
		if err != nil {
			return nil, err
		}
		v.Embedding = vec
	}
	return &v, nil
}
