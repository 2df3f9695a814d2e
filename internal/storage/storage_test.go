package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func saveListing(t *testing.T, m *Manager, externalID string) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		ExternalID:  externalID,
		Source:      "seek",
		Keyword:     "data engineer",
		Title:       "Data Engineer",
		Company:     "Acme",
		Description: "build pipelines",
		FirstSeen:   time.Now().UTC(),
	}
	id, err := m.Listings().SaveListing(context.Background(), listing)
	require.NoError(t, err)
	listing.ID = id
	return listing
}

func saveApplication(t *testing.T, m *Manager, listingID int64) *models.Application {
	t.Helper()
	app := &models.Application{
		ListingID:     listingID,
		Archetype:     models.ArchetypeBuilder,
		ResumeVersion: "v1",
		AppliedAt:     time.Now().UTC(),
	}
	id, err := m.Applications().CreateApplication(context.Background(), app)
	require.NoError(t, err)
	app.ID = id
	return app
}

func TestSaveListingKeepsScrapeKeyword(t *testing.T) {
	m := setupManager(t)
	listing := saveListing(t, m, "k-1")

	stored, err := m.Listings().GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "data engineer", stored.Keyword)
	assert.False(t, stored.IntelligenceOnly)
}

func TestSaveListingRejectsDuplicateExternalID(t *testing.T) {
	m := setupManager(t)
	saveListing(t, m, "dup-1")

	_, err := m.Listings().SaveListing(context.Background(), &models.Listing{
		ExternalID: "dup-1",
		Source:     "seek",
		Title:      "Data Engineer",
		FirstSeen:  time.Now().UTC(),
	})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestCreateApplicationOnePerListing(t *testing.T) {
	m := setupManager(t)
	listing := saveListing(t, m, "a-1")
	saveApplication(t, m, listing.ID)

	_, err := m.Applications().CreateApplication(context.Background(), &models.Application{
		ListingID: listing.ID,
		Archetype: models.ArchetypeFixer,
		AppliedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestApplyOutcomeOnlyAdvances(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	listing := saveListing(t, m, "a-2")
	app := saveApplication(t, m, listing.ID)

	advanced, err := m.Applications().ApplyOutcome(ctx, app.ID, models.OutcomeInterview, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, advanced)

	// A later acknowledgement must not demote the recorded interview.
	advanced, err = m.Applications().ApplyOutcome(ctx, app.ID, models.OutcomeAcknowledged, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, advanced)

	got, err := m.Applications().GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInterview, got.OutcomeStage)
}

func TestMarkGhostOnlyFromSubmitted(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	submitted := saveApplication(t, m, saveListing(t, m, "g-1").ID)
	rejected := saveApplication(t, m, saveListing(t, m, "g-2").ID)
	_, err := m.Applications().ApplyOutcome(ctx, rejected.ID, models.OutcomeRejected, time.Now().UTC())
	require.NoError(t, err)

	moved, err := m.Applications().MarkGhost(ctx, submitted.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = m.Applications().MarkGhost(ctx, rejected.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestOpenBatchConditionalLock(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	first := &models.Batch{
		ID:        common.NewBatchID(),
		Archetype: models.ArchetypeBuilder,
		Status:    models.BatchOpen,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, m.Batches().OpenBatch(ctx, first))

	second := &models.Batch{
		ID:        common.NewBatchID(),
		Archetype: models.ArchetypeFixer,
		Status:    models.BatchOpen,
		StartedAt: time.Now().UTC(),
	}
	assert.ErrorIs(t, m.Batches().OpenBatch(ctx, second), common.ErrInvariant)

	open, err := m.Batches().GetOpenBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, open.ID)

	require.NoError(t, m.Batches().CloseBatch(ctx, first.ID, 0))
	_, err = m.Batches().GetOpenBatch(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, m.Batches().OpenBatch(ctx, second))
}

func TestSaveMessageDeduplicatesByExternalID(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	msg := &models.InboundMessage{
		ExternalMessageID: "msg-1",
		Source:            "email",
		Sender:            "recruiter@acme.com",
		Subject:           "Your application",
		ReceivedAt:        time.Now().UTC(),
		MatchMethod:       models.MatchNone,
	}
	_, err := m.Messages().SaveMessage(ctx, msg)
	require.NoError(t, err)

	_, err = m.Messages().SaveMessage(ctx, &models.InboundMessage{
		ExternalMessageID: "msg-1",
		Source:            "email",
		ReceivedAt:        time.Now().UTC(),
		MatchMethod:       models.MatchNone,
	})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestUpsertSenderBumpsMatchCount(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sender := &models.KnownSender{
		Address:   "talent@acme.com",
		Entity:    "Acme",
		Class:     models.SenderDirect,
		FirstSeen: now,
		LastSeen:  now,
	}
	require.NoError(t, m.Senders().UpsertSender(ctx, sender))
	require.NoError(t, m.Senders().UpsertSender(ctx, sender))

	got, err := m.Senders().GetSender(ctx, "talent@acme.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MatchCount)
	assert.Equal(t, "Acme", got.Entity)
}

func TestIsIgnoredMatchesAddressAndDomain(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	require.NoError(t, m.Senders().AddIgnore(ctx, "noreply@jobalerts.com"))
	require.NoError(t, m.Senders().AddIgnore(ctx, "spamboard.io"))

	ignored, err := m.Senders().IsIgnored(ctx, "noreply@jobalerts.com")
	require.NoError(t, err)
	assert.True(t, ignored)

	ignored, err = m.Senders().IsIgnored(ctx, "anything@spamboard.io")
	require.NoError(t, err)
	assert.True(t, ignored)

	ignored, err = m.Senders().IsIgnored(ctx, "recruiter@acme.com")
	require.NoError(t, err)
	assert.False(t, ignored)
}

func TestSaveCentroidUniquePerWindow(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	windowStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	centroid := &models.MarketCentroid{
		Archetype:      models.ArchetypeBuilder,
		WindowStart:    windowStart,
		WindowEnd:      windowStart.AddDate(0, 0, 30),
		Centroid:       []float32{1, 0, 0},
		EmbeddingModel: "local-hash-v1",
		JDCount:        7,
	}
	_, err := m.Centroids().SaveCentroid(ctx, centroid)
	require.NoError(t, err)

	_, err = m.Centroids().SaveCentroid(ctx, centroid)
	assert.ErrorIs(t, err, common.ErrConflict)

	latest, err := m.Centroids().LatestCentroid(ctx, models.ArchetypeBuilder)
	require.NoError(t, err)
	assert.Equal(t, 7, latest.JDCount)
	assert.Equal(t, []float32{1, 0, 0}, latest.Centroid)
}

func TestFunnelCountsGroupsByArchetypeAndStage(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	appA := saveApplication(t, m, saveListing(t, m, "f-1").ID)
	saveApplication(t, m, saveListing(t, m, "f-2").ID)
	_, err := m.Applications().ApplyOutcome(ctx, appA.ID, models.OutcomeInterview, time.Now().UTC())
	require.NoError(t, err)

	funnel, err := m.Applications().FunnelCounts(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, funnel[models.ArchetypeBuilder][models.OutcomeInterview])
	assert.Equal(t, 1, funnel[models.ArchetypeBuilder][models.OutcomeSubmitted])
}

func TestVersionOutcomesRollsUpByVersion(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	saveApplication(t, m, saveListing(t, m, "v-1").ID)
	saveApplication(t, m, saveListing(t, m, "v-2").ID)

	rows, err := m.Applications().VersionOutcomes(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ArchetypeBuilder, rows[0].Archetype)
	assert.Equal(t, "v1", rows[0].ResumeVersion)
	assert.Equal(t, models.OutcomeSubmitted, rows[0].Stage)
	assert.Equal(t, 2, rows[0].Count)
}

func TestSyncStateRoundTrip(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	_, err := m.SyncState().GetState(ctx, "inbox_last_message_id")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, m.SyncState().SetState(ctx, "inbox_last_message_id", "abc"))
	require.NoError(t, m.SyncState().SetState(ctx, "inbox_last_message_id", "def"))

	value, err := m.SyncState().GetState(ctx, "inbox_last_message_id")
	require.NoError(t, err)
	assert.Equal(t, "def", value)
}
