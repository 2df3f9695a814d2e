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

// ListingStorage persists scraped job listings and their classification.
type ListingStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewListingStorage creates a listing storage backed by the given engine.
func NewListingStorage(db *DB, logger arbor.ILogger) interfaces.ListingStorage {
	return &ListingStorage{db: db, logger: logger}
}

const listingColumns = `id, external_id, source, keyword, title, company, location, salary, url, description,
	posted_date, first_seen, builder_score, fixer_score, operator_score, translator_score,
	primary_archetype, job_type, seniority, tech_tags, embedding, embedding_model, embedding_dim,
	classified, intelligence_only`

func (s *ListingStorage) SaveListing(ctx context.Context, listing *models.Listing) (int64, error) {
	if err := listing.Validate(); err != nil {
		return 0, err
	}

	firstSeen := listing.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = time.Now().UTC()
	}

	query := s.db.rebind(`
		INSERT INTO listings (external_id, source, keyword, title, company, location, salary, url, description, posted_date, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var postedDate sql.NullInt64
	if !listing.PostedDate.IsZero() {
		postedDate = sql.NullInt64{Int64: listing.PostedDate.Unix(), Valid: true}
	}

	var id int64
	err := s.db.DB().QueryRowContext(ctx, query,
		listing.ExternalID, listing.Source, listing.Keyword, listing.Title, listing.Company,
		listing.Location, listing.Salary, listing.URL, listing.Description, postedDate, unixOf(firstSeen),
	).Scan(&id)
	if err != nil {
		return 0, classify(err)
	}

	listing.ID = id
	listing.FirstSeen = firstSeen
	return id, nil
}

func (s *ListingStorage) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := s.db.rebind(`SELECT ` + listingColumns + ` FROM listings WHERE id = ?`)
	listing, err := scanListing(s.db.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return listing, nil
}

func (s *ListingStorage) GetListingByExternalID(ctx context.Context, source, externalID string) (*models.Listing, error) {
	query := s.db.rebind(`SELECT ` + listingColumns + ` FROM listings WHERE source = ? AND external_id = ?`)
	listing, err := scanListing(s.db.DB().QueryRowContext(ctx, query, source, externalID))
	if err != nil {
		return nil, classify(err)
	}
	return listing, nil
}

func (s *ListingStorage) UpdateClassification(ctx context.Context, listing *models.Listing) error {
	query := s.db.rebind(`
		UPDATE listings SET
			builder_score = ?, fixer_score = ?, operator_score = ?, translator_score = ?,
			primary_archetype = ?, job_type = ?, seniority = ?, tech_tags = ?,
			embedding = ?, embedding_model = ?, embedding_dim = ?, classified = ?
		WHERE id = ?`)

	result, err := s.db.DB().ExecContext(ctx, query,
		listing.ArchetypeScores[models.ArchetypeBuilder],
		listing.ArchetypeScores[models.ArchetypeFixer],
		listing.ArchetypeScores[models.ArchetypeOperator],
		listing.ArchetypeScores[models.ArchetypeTranslator],
		string(listing.Primary), string(listing.JobType), listing.Seniority,
		marshalJSON(listing.TechTags),
		encodeVector(listing.Embedding), listing.EmbeddingModel, len(listing.Embedding),
		true, listing.ID,
	)
	if err != nil {
		return classify(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: listing %d", sql.ErrNoRows, listing.ID)
	}

	s.logger.Debug().
		Int64("listing_id", listing.ID).
		Str("primary", string(listing.Primary)).
		Msg("Listing classification updated")
	return nil
}

func (s *ListingStorage) ListUnclassified(ctx context.Context, limit int) ([]*models.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.db.rebind(`SELECT ` + listingColumns + ` FROM listings WHERE classified = ? ORDER BY first_seen ASC LIMIT ?`)
	return s.queryListings(ctx, query, false, limit)
}

func (s *ListingStorage) ListUnapplied(ctx context.Context) ([]*models.Listing, error) {
	query := s.db.rebind(`
		SELECT ` + qualifyColumns("l", listingColumns) + `
		FROM listings l
		LEFT JOIN applications a ON a.listing_id = l.id
		WHERE l.classified = ? AND l.intelligence_only = ? AND a.id IS NULL
		ORDER BY l.first_seen ASC`)
	return s.queryListings(ctx, query, true, false)
}

// MarkIntelligenceOnly routes the listing to market tracking. The flag
// is one-way; nothing clears it.
func (s *ListingStorage) MarkIntelligenceOnly(ctx context.Context, id int64) error {
	query := s.db.rebind(`UPDATE listings SET intelligence_only = ? WHERE id = ?`)
	result, err := s.db.DB().ExecContext(ctx, query, true, id)
	if err != nil {
		return classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: listing %d", common.ErrNotFound, id)
	}
	return nil
}

func (s *ListingStorage) CountIntelligenceOnly(ctx context.Context) (int, error) {
	query := s.db.rebind(`SELECT COUNT(*) FROM listings WHERE intelligence_only = ?`)
	var count int
	if err := s.db.DB().QueryRowContext(ctx, query, true).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (s *ListingStorage) ListEmbeddedInWindow(ctx context.Context, archetype models.Archetype, start, end time.Time) ([]*models.Listing, error) {
	query := s.db.rebind(`
		SELECT ` + listingColumns + `
		FROM listings
		WHERE primary_archetype = ? AND embedding IS NOT NULL
			AND first_seen >= ? AND first_seen < ?
		ORDER BY first_seen ASC`)
	return s.queryListings(ctx, query, string(archetype), start.Unix(), end.Unix())
}

func (s *ListingStorage) RecentDescriptions(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	query := s.db.rebind(`SELECT description FROM listings ORDER BY first_seen DESC LIMIT ?`)
	rows, err := s.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var desc string
		if err := rows.Scan(&desc); err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, rows.Err()
}

func (s *ListingStorage) CountListings(ctx context.Context) (int, error) {
	var count int
	err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count)
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (s *ListingStorage) queryListings(ctx context.Context, query string, args ...any) ([]*models.Listing, error) {
	rows, err := s.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, listing)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		l                 models.Listing
		postedDate        sql.NullInt64
		firstSeen         int64
		builder, fixer    float64
		operator, transl  float64
		primary, jobType  string
		techTags          string
		embedding         []byte
		embeddingDim      int
	)

	err := row.Scan(
		&l.ID, &l.ExternalID, &l.Source, &l.Keyword, &l.Title, &l.Company, &l.Location, &l.Salary, &l.URL, &l.Description,
		&postedDate, &firstSeen, &builder, &fixer, &operator, &transl,
		&primary, &jobType, &l.Seniority, &techTags, &embedding, &l.EmbeddingModel, &embeddingDim,
		&l.Classified, &l.IntelligenceOnly,
	)
	if err != nil {
		return nil, err
	}

	if t := timePtrOf(postedDate); t != nil {
		l.PostedDate = *t
	}
	l.FirstSeen = timeOf(firstSeen)
	l.Primary = models.Archetype(primary)
	l.JobType = models.JobType(jobType)
	l.TechTags = unmarshalStrings(techTags)

	if l.Classified {
		l.ArchetypeScores = map[models.Archetype]float64{
			models.ArchetypeBuilder:    builder,
			models.ArchetypeFixer:      fixer,
			models.ArchetypeOperator:   operator,
			models.ArchetypeTranslator: transl,
		}
	}

	if len(embedding) > 0 {
		vec, err := decodeVector(embedding, embeddingDim)
		if err != nil {
			return nil, err
		}
		l.Embedding = vec
	}

	return &l, nil
}
