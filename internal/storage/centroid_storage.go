package storage

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// CentroidStorage persists market centroids. Windows are append-only:
// a second centroid for the same (archetype, window_start) is a conflict,
// never an overwrite.
type CentroidStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewCentroidStorage creates a centroid storage backed by the given engine.
func NewCentroidStorage(db *DB, logger arbor.ILogger) interfaces.CentroidStorage {
	return &CentroidStorage{db: db, logger: logger}
}

const centroidColumns = `id, archetype, window_start, window_end, centroid, embedding_model, embedding_dim,
	jd_count, shift_from_previous, top_gained_terms, top_lost_terms, created_at`

func (s *CentroidStorage) SaveCentroid(ctx context.Context, centroid *models.MarketCentroid) (int64, error) {
	if !centroid.Archetype.Valid() {
		return 0, common.ValidationError("centroid.archetype", "is not a known archetype")
	}
	if len(centroid.Centroid) == 0 {
		return 0, common.ValidationError("centroid.centroid", "is required")
	}

	query := s.db.rebind(`
		INSERT INTO market_centroids (archetype, window_start, window_end, centroid, embedding_model, embedding_dim,
			jd_count, shift_from_previous, top_gained_terms, top_lost_terms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.DB().QueryRowContext(ctx, query,
		string(centroid.Archetype), centroid.WindowStart.Unix(), centroid.WindowEnd.Unix(),
		encodeVector(centroid.Centroid), centroid.EmbeddingModel, len(centroid.Centroid),
		centroid.JDCount, centroid.ShiftFromPrevious,
		marshalJSON(centroid.TopGainedTerms), marshalJSON(centroid.TopLostTerms),
		time.Now().UTC().Unix(),
	).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}

	centroid.ID = id
	s.logger.Info().
		Str("archetype", string(centroid.Archetype)).
		Int("jd_count", centroid.JDCount).
		Float64("shift", centroid.ShiftFromPrevious).
		Msg("Market centroid saved")
	return id, nil
}

func (s *CentroidStorage) LatestCentroid(ctx context.Context, archetype models.Archetype) (*models.MarketCentroid, error) {
	query := s.db.rebind(`
		SELECT ` + centroidColumns + ` FROM market_centroids
		WHERE archetype = ? ORDER BY window_start DESC LIMIT 1`)
	centroid, err := scanCentroid(s.db.DB().QueryRowContext(ctx, query, string(archetype)))
	if err != nil {
		return nil, classify(err)
	}
	return centroid, nil
}

func (s *CentroidStorage) CentroidBefore(ctx context.Context, archetype models.Archetype, start time.Time) (*models.MarketCentroid, error) {
	query := s.db.rebind(`
		SELECT ` + centroidColumns + ` FROM market_centroids
		WHERE archetype = ? AND window_start < ? ORDER BY window_start DESC LIMIT 1`)
	centroid, err := scanCentroid(s.db.DB().QueryRowContext(ctx, query, string(archetype), start.Unix()))
	if err != nil {
		return nil, classify(err)
	}
	return centroid, nil
}

func (s *CentroidStorage) ListCentroids(ctx context.Context, archetype models.Archetype, limit int) ([]*models.MarketCentroid, error) {
	if limit <= 0 {
		limit = 12
	}
	query := s.db.rebind(`
		SELECT ` + centroidColumns + ` FROM market_centroids
		WHERE archetype = ? ORDER BY window_start DESC LIMIT ?`)
	rows, err := s.db.DB().QueryContext(ctx, query, string(archetype), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.MarketCentroid
	for rows.Next() {
		centroid, err := scanCentroid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, centroid)
	}
	return out, rows.Err()
}

func scanCentroid(row rowScanner) (*models.MarketCentroid, error) {
	var (
		c            models.MarketCentroid
		archetype    string
		windowStart  int64
		windowEnd    int64
		blob         []byte
		embeddingDim int
		gained       string
		lost         string
		createdAt    int64
	)

	err := row.Scan(&c.ID, &archetype, &windowStart, &windowEnd, &blob, &c.EmbeddingModel,
		&embeddingDim, &c.JDCount, &c.ShiftFromPrevious, &gained, &lost, &createdAt)
	if err != nil {
		return nil, err
	}

	vec, err := decodeVector(blob, embeddingDim)
	if err != nil {
		return nil, err
	}

	c.Archetype = models.Archetype(archetype)
	c.WindowStart = timeOf(windowStart)
	c.WindowEnd = timeOf(windowEnd)
	c.Centroid = vec
	c.TopGainedTerms = unmarshalStrings(gained)
	c.TopLostTerms = unmarshalStrings(lost)
	c.CreatedAt = timeOf(createdAt)
	return &c, nil
}
