package classifier

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/embeddings"
	"github.com/wmarzella/ronin/internal/storage"
)

// flakyEmbedder fails the first failures calls before delegating to the
// hash embedder.
type flakyEmbedder struct {
	failures int
	calls    int
	inner    *embeddings.HashEmbedder
}

func (f *flakyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, common.ErrTransient
	}
	return f.inner.Embed(text), nil
}

func (f *flakyEmbedder) Dimension() int    { return embeddings.FallbackDimension }
func (f *flakyEmbedder) ModelName() string { return embeddings.FallbackModelName }

// stubScraper returns a fixed listing set.
type stubScraper struct {
	listings []*models.Listing
}

func (s *stubScraper) Scrape(_ context.Context, _ string) ([]*models.Listing, error) {
	return s.listings, nil
}

func setupService(t *testing.T, embedder interfaces.EmbeddingService) (*Service, *storage.Manager) {
	t.Helper()

	logger := common.GetLogger()
	manager, err := storage.NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	if embedder == nil {
		embedder = &flakyEmbedder{inner: embeddings.NewHashEmbedder(embeddings.FallbackDimension)}
	}
	svc := NewService(manager, embedder, logger)
	svc.retryBase = time.Millisecond
	return svc, manager
}

func scrapedListing(externalID, description string) *models.Listing {
	return &models.Listing{
		ExternalID:  externalID,
		Source:      "seek",
		Keyword:     "data engineer",
		Title:       "Data Engineer",
		Company:     "Acme",
		Description: description,
		FirstSeen:   time.Now().UTC(),
	}
}

func TestIngestSavesAndClassifies(t *testing.T) {
	svc, manager := setupService(t, nil)
	ctx := context.Background()

	scraper := &stubScraper{listings: []*models.Listing{
		scrapedListing("i-1", "You will design and build data pipelines on snowflake."),
		scrapedListing("i-2", "Troubleshoot and fix failing airflow dags in production."),
	}}

	saved, err := svc.Ingest(ctx, scraper, "seek")
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	stored, err := manager.Listings().GetListingByExternalID(ctx, "seek", "i-1")
	require.NoError(t, err)
	assert.True(t, stored.Classified)
	assert.NotEmpty(t, stored.Embedding)
	assert.Equal(t, "data engineer", stored.Keyword)

	pending, err := manager.Listings().ListUnclassified(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIngestSkipsKnownListings(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	scraper := &stubScraper{listings: []*models.Listing{
		scrapedListing("i-3", "Build data platforms."),
	}}

	saved, err := svc.Ingest(ctx, scraper, "seek")
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	// A second scrape delivering the same listing saves nothing.
	scraper.listings[0] = scrapedListing("i-3", "Build data platforms.")
	saved, err = svc.Ingest(ctx, scraper, "seek")
	require.NoError(t, err)
	assert.Zero(t, saved)
}

func TestIngestClassifiesThroughTransientFailures(t *testing.T) {
	embedder := &flakyEmbedder{
		failures: 2,
		inner:    embeddings.NewHashEmbedder(embeddings.FallbackDimension),
	}
	svc, manager := setupService(t, embedder)
	ctx := context.Background()

	scraper := &stubScraper{listings: []*models.Listing{
		scrapedListing("i-4", "Design and build data pipelines."),
	}}

	saved, err := svc.Ingest(ctx, scraper, "seek")
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	// Two transient embed failures were retried before the success.
	assert.Equal(t, 3, embedder.calls)

	stored, err := manager.Listings().GetListingByExternalID(ctx, "seek", "i-4")
	require.NoError(t, err)
	assert.True(t, stored.Classified)
}

func TestClassifyWithRetryExhaustsAttempts(t *testing.T) {
	embedder := &flakyEmbedder{
		failures: 1000,
		inner:    embeddings.NewHashEmbedder(embeddings.FallbackDimension),
	}
	svc, manager := setupService(t, embedder)
	ctx := context.Background()

	listing := scrapedListing("i-5", "Build data platforms.")
	_, err := manager.Listings().SaveListing(ctx, listing)
	require.NoError(t, err)

	err = svc.ClassifyWithRetry(ctx, listing)
	require.Error(t, err)
	assert.Equal(t, 5, embedder.calls)

	// The listing stays pending for the scheduled sweep.
	pending, err := manager.Listings().ListUnclassified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "i-5", pending[0].ExternalID)
}
