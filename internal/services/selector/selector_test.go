package selector

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/storage"
)

func setupSelector(t *testing.T) (*Selector, *storage.Manager) {
	t.Helper()

	logger := common.GetLogger()
	manager, err := storage.NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	sel := New(manager, &common.SelectorConfig{
		CloseCallDelta:         0.10,
		CombinedScoreThreshold: 0.15,
	}, logger)
	return sel, manager
}

func classifiedListing(scores map[models.Archetype]float64) *models.Listing {
	return &models.Listing{
		ExternalID:      "x1",
		Source:          "seek",
		Title:           "Data Engineer",
		ArchetypeScores: scores,
		Classified:      true,
	}
}

func TestSelectPicksTopArchetype(t *testing.T) {
	sel, _ := setupSelector(t)

	selection, err := sel.Select(context.Background(), classifiedListing(map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.55,
		models.ArchetypeFixer:      0.25,
		models.ArchetypeOperator:   0.15,
		models.ArchetypeTranslator: 0.05,
	}))
	require.NoError(t, err)

	assert.Equal(t, models.ArchetypeBuilder, selection.Archetype)
	assert.False(t, selection.NeedsReview)
	assert.False(t, selection.IntelligenceOnly)
	// No variant on file: alignment defaults to 1.0.
	assert.InDelta(t, 0.55, selection.Combined, 1e-9)
}

func TestSelectCloseCallFlagsReview(t *testing.T) {
	sel, _ := setupSelector(t)

	selection, err := sel.Select(context.Background(), classifiedListing(map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.38,
		models.ArchetypeFixer:      0.32,
		models.ArchetypeOperator:   0.20,
		models.ArchetypeTranslator: 0.10,
	}))
	require.NoError(t, err)

	assert.True(t, selection.NeedsReview)
}

func TestSelectMarginExactlyAtDeltaIsDecisive(t *testing.T) {
	sel, _ := setupSelector(t)

	selection, err := sel.Select(context.Background(), classifiedListing(map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.40,
		models.ArchetypeFixer:      0.30,
		models.ArchetypeOperator:   0.20,
		models.ArchetypeTranslator: 0.10,
	}))
	require.NoError(t, err)

	assert.False(t, selection.NeedsReview)
}

func TestSelectCombinedUsesVariantAlignment(t *testing.T) {
	sel, manager := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v1",
		AlignmentScore: 0.5,
		UpdatedAt:      time.Now().UTC(),
	}))

	selection, err := sel.Select(ctx, classifiedListing(map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.60,
		models.ArchetypeFixer:      0.20,
		models.ArchetypeOperator:   0.15,
		models.ArchetypeTranslator: 0.05,
	}))
	require.NoError(t, err)

	require.NotNil(t, selection.Variant)
	assert.InDelta(t, 0.30, selection.Combined, 1e-9)
	assert.False(t, selection.IntelligenceOnly)
}

func TestSelectWeakCombinedIsIntelligenceOnly(t *testing.T) {
	sel, manager := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeOperator,
		FilePath:       "resumes/operator.md",
		CurrentVersion: "v1",
		AlignmentScore: 0.3,
		UpdatedAt:      time.Now().UTC(),
	}))

	selection, err := sel.Select(ctx, classifiedListing(map[models.Archetype]float64{
		models.ArchetypeOperator:   0.40,
		models.ArchetypeBuilder:    0.25,
		models.ArchetypeFixer:      0.20,
		models.ArchetypeTranslator: 0.15,
	}))
	require.NoError(t, err)

	// 0.40 * 0.3 = 0.12, below the 0.15 floor.
	assert.True(t, selection.IntelligenceOnly)
}

func TestSelectRejectsUnclassifiedListing(t *testing.T) {
	sel, _ := setupSelector(t)

	_, err := sel.Select(context.Background(), &models.Listing{ID: 1, Classified: false})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSelectRecordsRationale(t *testing.T) {
	sel, _ := setupSelector(t)

	selection, err := sel.Select(context.Background(), classifiedListing(map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.55,
		models.ArchetypeFixer:      0.25,
		models.ArchetypeOperator:   0.15,
		models.ArchetypeTranslator: 0.05,
	}))
	require.NoError(t, err)

	var decoded rationale
	require.NoError(t, json.Unmarshal([]byte(selection.Rationale), &decoded))
	assert.InDelta(t, 0.55, decoded.TopScore, 1e-9)
	assert.InDelta(t, 0.55, decoded.Combined, 1e-9)
	assert.InDelta(t, 0.15, decoded.CombinedFloor, 1e-9)
	assert.False(t, decoded.NeedsReview)
}

func TestSelectPersistsIntelligenceOnlyOnStoredListing(t *testing.T) {
	sel, manager := setupSelector(t)
	ctx := context.Background()

	listing := &models.Listing{
		ExternalID: "weak-1",
		Source:     "seek",
		Title:      "Data Engineer",
		FirstSeen:  time.Now().UTC(),
	}
	_, err := manager.Listings().SaveListing(ctx, listing)
	require.NoError(t, err)

	listing.ArchetypeScores = map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.28,
		models.ArchetypeFixer:      0.26,
		models.ArchetypeOperator:   0.24,
		models.ArchetypeTranslator: 0.22,
	}
	listing.Primary = models.ArchetypeBuilder
	listing.Classified = true
	require.NoError(t, manager.Listings().UpdateClassification(ctx, listing))

	require.NoError(t, manager.Variants().UpsertVariant(ctx, &models.ResumeVariant{
		Archetype:      models.ArchetypeBuilder,
		FilePath:       "resumes/builder.md",
		CurrentVersion: "v1",
		AlignmentScore: 0.3,
		UpdatedAt:      time.Now().UTC(),
	}))

	// 0.28 x 0.3 = 0.084, below the 0.15 floor.
	selection, err := sel.Select(ctx, listing)
	require.NoError(t, err)
	require.True(t, selection.IntelligenceOnly)
	assert.True(t, listing.IntelligenceOnly)

	// The flag is on the stored row and the queue no longer offers it.
	stored, err := manager.Listings().GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.True(t, stored.IntelligenceOnly)

	unapplied, err := manager.Listings().ListUnapplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, unapplied)

	count, err := manager.Listings().CountIntelligenceOnly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
