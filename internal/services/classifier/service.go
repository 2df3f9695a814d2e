package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

const (
	hookMaxAttempts = 5
	hookBaseDelay   = 2 * time.Second
	hookMaxDelay    = 5 * time.Minute
)

// Service attaches classifications to stored listings. The rule scoring
// is local and cannot fail; only the embedding call and the store write
// can, so those drive the retry behaviour.
type Service struct {
	storage  interfaces.StorageManager
	embedder interfaces.EmbeddingService
	engine   *Classifier
	logger   arbor.ILogger

	retryBase time.Duration
	retryCap  time.Duration
}

func NewService(storage interfaces.StorageManager, embedder interfaces.EmbeddingService, logger arbor.ILogger) *Service {
	return &Service{
		storage:   storage,
		embedder:  embedder,
		engine:    New(logger),
		logger:    logger,
		retryBase: hookBaseDelay,
		retryCap:  hookMaxDelay,
	}
}

// Engine exposes the underlying rule classifier for callers that score
// text without touching the store.
func (s *Service) Engine() *Classifier {
	return s.engine
}

// ClassifyListing scores one listing and persists the result. The
// stored embedding comes from the embedding service so all listing
// vectors share one space.
func (s *Service) ClassifyListing(ctx context.Context, listing *models.Listing) error {
	if listing.Description == "" {
		return common.ValidationError("description", "is empty")
	}

	result := s.engine.Classify(listing.Description, listing.Title)

	vector, err := s.embedder.Embed(ctx, listing.Description)
	if err != nil {
		return fmt.Errorf("failed to embed listing %d: %w", listing.ID, err)
	}

	listing.ArchetypeScores = result.Scores
	listing.Primary = result.Primary
	listing.JobType = result.JobType
	listing.Seniority = result.Seniority
	listing.TechTags = result.TechTags
	listing.Embedding = vector
	listing.EmbeddingModel = s.embedder.ModelName()
	listing.Classified = true

	if err := s.storage.Listings().UpdateClassification(ctx, listing); err != nil {
		return err
	}

	s.logger.Info().
		Int64("listing_id", listing.ID).
		Str("primary", string(result.Primary)).
		Str("job_type", string(result.JobType)).
		Int("tech_tags", len(result.TechTags)).
		Msg("Listing classified")
	return nil
}

// ClassifyPending classifies every unclassified listing, continuing past
// per-listing failures. Returns the number classified.
func (s *Service) ClassifyPending(ctx context.Context, limit int) (int, error) {
	listings, err := s.storage.Listings().ListUnclassified(ctx, limit)
	if err != nil {
		return 0, err
	}

	classified := 0
	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return classified, err
		}
		if err := s.ClassifyListing(ctx, listing); err != nil {
			s.logger.Warn().Err(err).Int64("listing_id", listing.ID).Msg("Classification failed, listing stays pending")
			continue
		}
		classified++
	}
	return classified, nil
}

// ClassifyWithRetry is the post-insert hook: it retries transient
// failures with capped exponential backoff and gives up on anything
// permanent. The listing stays unclassified on failure and is swept up
// by the next scheduled run.
func (s *Service) ClassifyWithRetry(ctx context.Context, listing *models.Listing) error {
	var lastErr error
	for attempt := 0; attempt < hookMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retryBase << (attempt - 1)
			if delay > s.retryCap {
				delay = s.retryCap
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = s.ClassifyListing(ctx, listing)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, common.ErrTransient) {
			return lastErr
		}
	}
	return fmt.Errorf("classification hook exhausted %d attempts: %w", hookMaxAttempts, lastErr)
}

// Ingest pulls listings from the scraper and classifies each as it
// lands. Duplicates are skipped; a failed classification leaves the
// listing pending for the scheduled sweep. Returns the number of
// listings newly saved.
func (s *Service) Ingest(ctx context.Context, scraper interfaces.Scraper, source string) (int, error) {
	listings, err := scraper.Scrape(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("scrape of %s failed: %w", source, err)
	}

	saved := 0
	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if _, err := s.storage.Listings().SaveListing(ctx, listing); err != nil {
			if errors.Is(err, common.ErrConflict) {
				s.logger.Debug().
					Str("source", listing.Source).
					Str("external_id", listing.ExternalID).
					Msg("Listing already known, skipping")
				continue
			}
			return saved, err
		}
		saved++

		if err := s.ClassifyWithRetry(ctx, listing); err != nil {
			s.logger.Warn().
				Err(err).
				Int64("listing_id", listing.ID).
				Msg("Classification failed, listing left for the scheduled sweep")
		}
	}

	s.logger.Info().
		Str("source", source).
		Int("scraped", len(listings)).
		Int("saved", saved).
		Msg("Listing ingest completed")
	return saved, nil
}
