package spool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/storage"
)

func setupSpool(t *testing.T) (*Spool, *storage.Manager) {
	t.Helper()

	logger := common.GetLogger()
	dir := t.TempDir()

	sp, err := New(logger, filepath.Join(dir, "spool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sp.Close() })

	manager, err := storage.NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(dir, "store.db")},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return sp, manager
}

func TestFlushReplaysListingsInOrder(t *testing.T) {
	sp, manager := setupSpool(t)
	ctx := context.Background()

	for _, externalID := range []string{"s-1", "s-2"} {
		require.NoError(t, sp.EnqueueListing(ctx, &models.Listing{
			ExternalID: externalID,
			Source:     "seek",
			Title:      "Data Engineer",
			FirstSeen:  time.Now().UTC(),
		}))
	}

	pending, err := sp.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	flushed, err := sp.Flush(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 2, flushed)

	count, err := manager.Listings().CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	pending, err = sp.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestFlushResolvesApplicationListingByExternalID(t *testing.T) {
	sp, manager := setupSpool(t)
	ctx := context.Background()

	// The listing exists remotely under a different local id than the
	// one the spooling process saw.
	listing := &models.Listing{
		ExternalID: "s-3",
		Source:     "seek",
		Title:      "Data Engineer",
		FirstSeen:  time.Now().UTC(),
	}
	remoteID, err := manager.Listings().SaveListing(ctx, listing)
	require.NoError(t, err)

	require.NoError(t, sp.EnqueueApplication(ctx, "seek", "s-3", &models.Application{
		ID:            99,
		ListingID:     42,
		Archetype:     models.ArchetypeBuilder,
		ResumeVersion: "v1",
		AppliedAt:     time.Now().UTC(),
	}))

	flushed, err := sp.Flush(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	app, err := manager.Applications().GetApplicationByListing(ctx, remoteID)
	require.NoError(t, err)
	assert.Equal(t, models.ArchetypeBuilder, app.Archetype)
}

func TestFlushDropsDuplicatesWithoutOverwriting(t *testing.T) {
	sp, manager := setupSpool(t)
	ctx := context.Background()

	listing := &models.Listing{
		ExternalID: "s-4",
		Source:     "seek",
		Title:      "Data Engineer",
		FirstSeen:  time.Now().UTC(),
	}
	listingID, err := manager.Listings().SaveListing(ctx, listing)
	require.NoError(t, err)
	appID, err := manager.Applications().CreateApplication(ctx, &models.Application{
		ListingID:     listingID,
		Archetype:     models.ArchetypeBuilder,
		ResumeVersion: "v2",
		AppliedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = manager.Applications().ApplyOutcome(ctx, appID, models.OutcomeInterview, time.Now().UTC())
	require.NoError(t, err)

	// Spooled duplicate of the same application, still at submitted.
	require.NoError(t, sp.EnqueueApplication(ctx, "seek", "s-4", &models.Application{
		ListingID: 1,
		Archetype: models.ArchetypeBuilder,
		AppliedAt: time.Now().UTC(),
	}))

	flushed, err := sp.Flush(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	// The remote outcome survives the replay.
	app, err := manager.Applications().GetApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInterview, app.OutcomeStage)
}

func TestFlushReplaysMessages(t *testing.T) {
	sp, manager := setupSpool(t)
	ctx := context.Background()

	require.NoError(t, sp.EnqueueMessage(ctx, &models.InboundMessage{
		ExternalMessageID: "m-1",
		Source:            "email",
		Sender:            "recruiter@acme.com",
		Subject:           "Interview",
		ReceivedAt:        time.Now().UTC(),
		MatchMethod:       models.MatchNone,
	}))

	flushed, err := sp.Flush(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	count, err := manager.Messages().CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
