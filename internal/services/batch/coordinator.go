package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/selector"
	"github.com/wmarzella/ronin/internal/storage/spool"
)

// QueueSummary reports the per-archetype application queue.
type QueueSummary struct {
	Counts           map[models.Archetype]int     `json:"counts"`
	AverageTopScore  map[models.Archetype]float64 `json:"average_top_score"`
	IntelligenceOnly int                          `json:"intelligence_only"`
	NeedsReview      int                          `json:"needs_review"`
}

// Coordinator runs application batches under the shared-profile
// invariant: one archetype's applications at a time, matching the
// profile state advertised externally. The store enforces the single
// open batch; the coordinator sequences submissions inside it.
type Coordinator struct {
	storage   interfaces.StorageManager
	selector  *selector.Selector
	submitter interfaces.Submitter
	spool     *spool.Spool
	logger    arbor.ILogger
}

func NewCoordinator(storage interfaces.StorageManager, sel *selector.Selector, submitter interfaces.Submitter, sp *spool.Spool, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		storage:   storage,
		selector:  sel,
		submitter: submitter,
		spool:     sp,
		logger:    logger,
	}
}

// ListQueue summarises unapplied classified listings by archetype.
func (c *Coordinator) ListQueue(ctx context.Context) (*QueueSummary, error) {
	listings, err := c.storage.Listings().ListUnapplied(ctx)
	if err != nil {
		return nil, err
	}

	summary := &QueueSummary{
		Counts:          make(map[models.Archetype]int),
		AverageTopScore: make(map[models.Archetype]float64),
	}
	totals := make(map[models.Archetype]float64)

	for _, listing := range listings {
		sel, err := c.selector.Select(ctx, listing)
		if err != nil {
			return nil, err
		}
		if sel.IntelligenceOnly {
			continue
		}
		if sel.NeedsReview {
			summary.NeedsReview++
		}
		summary.Counts[sel.Archetype]++
		totals[sel.Archetype] += sel.TopScore
	}

	for archetype, total := range totals {
		summary.AverageTopScore[archetype] = total / float64(summary.Counts[archetype])
	}

	// The selector persists the flag, so the stored count covers both
	// previously routed listings and any flagged during this pass.
	intelOnly, err := c.storage.Listings().CountIntelligenceOnly(ctx)
	if err != nil {
		return nil, err
	}
	summary.IntelligenceOnly = intelOnly
	return summary, nil
}

// OpenBatch opens a submission batch for the archetype. The caller
// asserts that the externally advertised profile currently matches;
// profileState is the variant version the profile was set to. Fails
// with ErrInvariant while another batch is open.
func (c *Coordinator) OpenBatch(ctx context.Context, archetype models.Archetype, profileState string) (*models.Batch, error) {
	if !archetype.Valid() {
		return nil, common.ValidationError("archetype", "is not a known archetype")
	}

	variant, err := c.storage.Variants().GetVariant(ctx, archetype)
	if err != nil {
		return nil, fmt.Errorf("no resume variant for %s: %w", archetype, err)
	}
	if profileState == "" {
		profileState = variant.CurrentVersion
	}

	batch := &models.Batch{
		ID:           common.NewBatchID(),
		Archetype:    archetype,
		ProfileState: profileState,
		Status:       models.BatchOpen,
		StartedAt:    time.Now().UTC(),
	}
	if err := c.storage.Batches().OpenBatch(ctx, batch); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("batch_id", batch.ID).
		Str("archetype", string(archetype)).
		Str("profile_state", profileState).
		Msg("Batch opened")
	return batch, nil
}

// Emit submits one listing under the open batch and records the
// application. Emission is idempotent per listing: a listing that
// already has an application is skipped. Submitter failure marks the
// application recoverable and does not advance the batch count.
func (c *Coordinator) Emit(ctx context.Context, batch *models.Batch, listing *models.Listing) error {
	sel, err := c.selector.Select(ctx, listing)
	if err != nil {
		return err
	}
	if sel.IntelligenceOnly {
		return fmt.Errorf("%w: listing %d is intelligence-only", common.ErrValidation, listing.ID)
	}
	if sel.Archetype != batch.Archetype {
		return fmt.Errorf("%w: listing %d selects %s, batch is %s",
			common.ErrInvariant, listing.ID, sel.Archetype, batch.Archetype)
	}
	if sel.Variant == nil {
		return fmt.Errorf("%w: no resume variant for %s", common.ErrValidation, batch.Archetype)
	}

	app := &models.Application{
		ListingID:          listing.ID,
		BatchID:            batch.ID,
		Archetype:          batch.Archetype,
		ResumeVersion:      batch.ProfileState,
		AppliedAt:          time.Now().UTC(),
		SelectionRationale: sel.Rationale,
	}

	appID, err := c.storage.Applications().CreateApplication(ctx, app)
	switch {
	case errors.Is(err, common.ErrConflict):
		c.logger.Debug().Int64("listing_id", listing.ID).Msg("Listing already applied to, skipping")
		return nil
	case errors.Is(err, common.ErrTransient) && c.spool != nil:
		if spoolErr := c.spool.EnqueueApplication(ctx, listing.Source, listing.ExternalID, app); spoolErr != nil {
			return spoolErr
		}
		return spool.ErrSpooled
	case err != nil:
		return err
	}

	if err := c.submitter.Submit(ctx, listing, sel.Variant); err != nil {
		if recErr := c.storage.Applications().SetLastError(ctx, appID, err.Error()); recErr != nil {
			return recErr
		}
		c.logger.Warn().
			Err(err).
			Int64("application_id", appID).
			Msg("Submission failed, application marked recoverable")
		return fmt.Errorf("submission failed for listing %d: %w", listing.ID, err)
	}

	if err := c.storage.Batches().IncrementCount(ctx, batch.ID); err != nil {
		return err
	}
	batch.ApplicationCount++

	c.logger.Info().
		Str("batch_id", batch.ID).
		Int64("application_id", appID).
		Int64("listing_id", listing.ID).
		Msg("Application submitted")
	return nil
}

// RunBatch opens a batch, emits every queued listing for the archetype,
// and closes the batch. Per-listing failures are recorded and skipped;
// only store-level failures abort the run.
func (c *Coordinator) RunBatch(ctx context.Context, archetype models.Archetype) (*models.Batch, error) {
	batch, err := c.OpenBatch(ctx, archetype, "")
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := c.CloseBatch(ctx, batch); closeErr != nil {
			c.logger.Error().Err(closeErr).Str("batch_id", batch.ID).Msg("Failed to close batch")
		}
	}()

	listings, err := c.storage.Listings().ListUnapplied(ctx)
	if err != nil {
		return batch, err
	}

	for _, listing := range listings {
		sel, err := c.selector.Select(ctx, listing)
		if err != nil {
			return batch, err
		}
		if sel.IntelligenceOnly || sel.Archetype != archetype {
			continue
		}
		if err := c.Emit(ctx, batch, listing); err != nil {
			if common.IsRetryable(err) {
				return batch, err
			}
			// Recoverable per-application failure, already recorded.
			continue
		}
	}
	return batch, nil
}

// CloseBatch finalises the batch and releases the open-batch lock.
func (c *Coordinator) CloseBatch(ctx context.Context, batch *models.Batch) error {
	if err := c.storage.Batches().CloseBatch(ctx, batch.ID, batch.ApplicationCount); err != nil {
		return err
	}
	batch.Status = models.BatchClosed
	c.logger.Info().
		Str("batch_id", batch.ID).
		Int("applications", batch.ApplicationCount).
		Msg("Batch closed")
	return nil
}
