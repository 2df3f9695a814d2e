package drift

import (
	"context"
	"fmt"
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

func setupEngine(t *testing.T) (*Engine, *storage.Manager, interfaces.EmbeddingService) {
	t.Helper()

	logger := common.GetLogger()
	manager, err := storage.NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	embedder, err := embeddings.NewService(context.Background(), &common.EmbeddingConfig{}, logger)
	require.NoError(t, err)

	engine := NewEngine(manager, embedder, &common.DriftConfig{
		WindowDays:          30,
		MinWindowJDCount:    5,
		ShiftThreshold:      0.05,
		StalenessThreshold:  0.08,
		RewriteCooldownDays: 21,
	}, logger)
	return engine, manager, embedder
}

// seedWindow stores n classified builder listings with embeddings inside
// the 30 days before now.
func seedWindow(t *testing.T, manager *storage.Manager, embedder interfaces.EmbeddingService, n int, now time.Time, texts ...string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < n; i++ {
		text := fmt.Sprintf("build a greenfield data platform number %d", i)
		if i < len(texts) {
			text = texts[i]
		}
		vector, err := embedder.Embed(ctx, text)
		require.NoError(t, err)

		listing := &models.Listing{
			ExternalID:  fmt.Sprintf("w%d-%d", now.Unix(), i),
			Source:      "seek",
			Title:       "Data Engineer",
			Company:     "Acme",
			Description: text,
			FirstSeen:   now.AddDate(0, 0, -3),
		}
		_, err = manager.Listings().SaveListing(ctx, listing)
		require.NoError(t, err)

		listing.ArchetypeScores = map[models.Archetype]float64{models.ArchetypeBuilder: 1.0}
		listing.Primary = models.ArchetypeBuilder
		listing.JobType = models.JobTypeContract
		listing.Embedding = vector
		listing.EmbeddingModel = embedder.ModelName()
		listing.Classified = true
		require.NoError(t, manager.Listings().UpdateClassification(ctx, listing))
	}
}

func TestComputeCentroidsRequiresMinimumJDCount(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	now := time.Now().UTC()

	seedWindow(t, manager, embedder, 4, now)

	created, err := engine.ComputeCentroids(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestComputeCentroidsAtExactMinimum(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	now := time.Now().UTC()

	seedWindow(t, manager, embedder, 5, now)

	created, err := engine.ComputeCentroids(context.Background(), now)
	require.NoError(t, err)
	require.Contains(t, created, models.ArchetypeBuilder)

	centroid := created[models.ArchetypeBuilder]
	assert.Equal(t, 5, centroid.JDCount)
	assert.Zero(t, centroid.ShiftFromPrevious)
	assert.NotEmpty(t, centroid.Centroid)
}

func TestComputeCentroidsIdempotentPerWindow(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	now := time.Now().UTC()

	seedWindow(t, manager, embedder, 5, now)

	ctx := context.Background()
	first, err := engine.ComputeCentroids(ctx, now)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Same window again: the unique key absorbs the write and nothing
	// new is reported, so no duplicate alerts can fire.
	second, err := engine.ComputeCentroids(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, second)

	all, err := manager.Centroids().ListCentroids(ctx, models.ArchetypeBuilder, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCheckMarketShiftThresholdIsStrict(t *testing.T) {
	engine, manager, _ := setupEngine(t)
	ctx := context.Background()

	atThreshold := &models.MarketCentroid{
		Archetype:         models.ArchetypeBuilder,
		WindowStart:       time.Now().UTC().AddDate(0, 0, -30),
		WindowEnd:         time.Now().UTC(),
		Centroid:          []float32{1, 0, 0},
		JDCount:           6,
		ShiftFromPrevious: 0.05,
	}
	alerts, err := engine.CheckMarketShift(ctx, map[models.Archetype]*models.MarketCentroid{
		models.ArchetypeBuilder: atThreshold,
	})
	require.NoError(t, err)
	assert.Empty(t, alerts)

	above := *atThreshold
	above.ShiftFromPrevious = 0.07
	alerts, err = engine.CheckMarketShift(ctx, map[models.Archetype]*models.MarketCentroid{
		models.ArchetypeBuilder: &above,
	})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertMarketShift, alerts[0].Type)
	assert.InDelta(t, 0.07, alerts[0].MetricValue, 1e-9)

	stored, err := manager.Alerts().LatestUnacknowledged(ctx, models.ArchetypeBuilder, models.AlertMarketShift)
	require.NoError(t, err)
	assert.False(t, stored.Acknowledged)
}

func TestCheckStalenessFiresAboveThreshold(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	ctx := context.Background()

	// Orthogonal-ish vectors give a large cosine distance.
	_, err := manager.Centroids().SaveCentroid(ctx, &models.MarketCentroid{
		Archetype:      models.ArchetypeBuilder,
		WindowStart:    time.Now().UTC().AddDate(0, 0, -30),
		WindowEnd:      time.Now().UTC(),
		Centroid:       []float32{1, 0, 0},
		EmbeddingModel: embedder.ModelName(),
		JDCount:        6,
	})
	require.NoError(t, err)

	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v3",
		Embedding:      []float32{0, 1, 0},
		EmbeddingModel: embedder.ModelName(),
		UpdatedAt:      time.Now().UTC(),
	}))

	alerts, err := engine.CheckStaleness(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertResumeStale, alerts[0].Type)
	assert.InDelta(t, 1.0, alerts[0].MetricValue, 1e-6)
}

func TestRewriteGate(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	saveComponentAlerts := func() (string, string) {
		market := &models.DriftAlert{
			Archetype:      models.ArchetypeBuilder,
			Type:           models.AlertMarketShift,
			MetricValue:    0.07,
			ThresholdValue: 0.05,
			Details:        `{"gained_terms":["snowflake","terraform"],"lost_terms":["informatica"]}`,
		}
		require.NoError(t, manager.Alerts().SaveAlert(ctx, market))
		stale := &models.DriftAlert{
			Archetype:      models.ArchetypeBuilder,
			Type:           models.AlertResumeStale,
			MetricValue:    0.11,
			ThresholdValue: 0.08,
		}
		require.NoError(t, manager.Alerts().SaveAlert(ctx, stale))
		return market.ID, stale.ID
	}

	// Last rewrite 30 days ago clears the 21-day cooldown.
	lastRewrite := now.AddDate(0, 0, -30)
	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v3",
		Embedding:      []float32{1, 0, 0},
		EmbeddingModel: embedder.ModelName(),
		LastRewritten:  &lastRewrite,
		UpdatedAt:      now,
	}))
	marketID, staleID := saveComponentAlerts()

	triggered, err := engine.CheckRewriteTriggers(ctx, now)
	require.NoError(t, err)
	require.Len(t, triggered, 1)
	assert.Equal(t, models.AlertRewriteTriggered, triggered[0].Type)
	assert.Contains(t, triggered[0].Details, "shifting towards: snowflake, terraform")
	assert.Contains(t, triggered[0].Details, "de-emphasising: informatica")

	// Component alerts are consumed.
	market, err := manager.Alerts().GetAlert(ctx, marketID)
	require.NoError(t, err)
	assert.True(t, market.Acknowledged)
	stale, err := manager.Alerts().GetAlert(ctx, staleID)
	require.NoError(t, err)
	assert.True(t, stale.Acknowledged)
}

func TestRewriteGateRespectsCooldown(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Rewritten 10 days ago, inside the 21-day cooldown.
	lastRewrite := now.AddDate(0, 0, -10)
	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v3",
		Embedding:      []float32{1, 0, 0},
		EmbeddingModel: embedder.ModelName(),
		LastRewritten:  &lastRewrite,
		UpdatedAt:      now,
	}))

	require.NoError(t, manager.Alerts().SaveAlert(ctx, &models.DriftAlert{
		Archetype: models.ArchetypeBuilder, Type: models.AlertMarketShift,
		MetricValue: 0.07, ThresholdValue: 0.05,
	}))
	require.NoError(t, manager.Alerts().SaveAlert(ctx, &models.DriftAlert{
		Archetype: models.ArchetypeBuilder, Type: models.AlertResumeStale,
		MetricValue: 0.11, ThresholdValue: 0.08,
	}))

	triggered, err := engine.CheckRewriteTriggers(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestRewriteGateNeedsBothComponents(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v3",
		Embedding:      []float32{1, 0, 0},
		EmbeddingModel: embedder.ModelName(),
		UpdatedAt:      now,
	}))

	// Market shift alone is not enough.
	require.NoError(t, manager.Alerts().SaveAlert(ctx, &models.DriftAlert{
		Archetype: models.ArchetypeBuilder, Type: models.AlertMarketShift,
		MetricValue: 0.07, ThresholdValue: 0.05,
	}))

	triggered, err := engine.CheckRewriteTriggers(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, triggered)
}

func TestRefreshAlignments(t *testing.T) {
	engine, manager, embedder := setupEngine(t)
	ctx := context.Background()

	_, err := manager.Centroids().SaveCentroid(ctx, &models.MarketCentroid{
		Archetype:      models.ArchetypeBuilder,
		WindowStart:    time.Now().UTC().AddDate(0, 0, -30),
		WindowEnd:      time.Now().UTC(),
		Centroid:       []float32{1, 0, 0},
		EmbeddingModel: embedder.ModelName(),
		JDCount:        6,
	})
	require.NoError(t, err)

	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v1",
		Embedding:      []float32{1, 0, 0},
		EmbeddingModel: embedder.ModelName(),
		UpdatedAt:      time.Now().UTC(),
	}))

	require.NoError(t, engine.RefreshAlignments(ctx))

	variant, err := manager.Variants().GetVariant(ctx, models.ArchetypeBuilder)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, variant.AlignmentScore, 1e-6)
	assert.InDelta(t, 0.0, variant.Staleness(), 1e-6)
}
