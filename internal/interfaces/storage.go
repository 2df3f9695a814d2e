package interfaces

import (
	"context"
	"time"

	"github.com/wmarzella/ronin/internal/models"
)

// ListingStorage - interface for scraped job listing persistence
type ListingStorage interface {
	// SaveListing inserts a listing. Returns ErrConflict when a listing
	// with the same (source, external_id) already exists.
	SaveListing(ctx context.Context, listing *models.Listing) (int64, error)
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	GetListingByExternalID(ctx context.Context, source, externalID string) (*models.Listing, error)

	// UpdateClassification persists archetype scores, metadata and the
	// description embedding for an already-saved listing.
	UpdateClassification(ctx context.Context, listing *models.Listing) error

	ListUnclassified(ctx context.Context, limit int) ([]*models.Listing, error)

	// ListUnapplied returns classified listings with no application row,
	// excluding those routed to market tracking.
	ListUnapplied(ctx context.Context) ([]*models.Listing, error)

	// MarkIntelligenceOnly flags a listing as market-tracking only so it
	// never enters the application queue.
	MarkIntelligenceOnly(ctx context.Context, id int64) error
	CountIntelligenceOnly(ctx context.Context) (int, error)

	// ListEmbeddedInWindow returns listings whose primary archetype
	// matches and whose first_seen falls inside [start, end).
	ListEmbeddedInWindow(ctx context.Context, archetype models.Archetype, start, end time.Time) ([]*models.Listing, error)

	// RecentDescriptions returns the most recent description texts, used
	// to build the term-drift reference vocabulary.
	RecentDescriptions(ctx context.Context, limit int) ([]string, error)

	CountListings(ctx context.Context) (int, error)
}

// VersionOutcome is one row of the per-version funnel rollup.
type VersionOutcome struct {
	Archetype     models.Archetype
	ResumeVersion string
	Stage         models.OutcomeStage
	Count         int
}

// ApplicationStorage - interface for application persistence
type ApplicationStorage interface {
	// CreateApplication inserts an application. Returns ErrConflict when
	// the listing already has one.
	CreateApplication(ctx context.Context, app *models.Application) (int64, error)
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	GetApplicationByListing(ctx context.Context, listingID int64) (*models.Application, error)
	ListByBatch(ctx context.Context, batchID string) ([]*models.Application, error)

	// ApplyOutcome advances the outcome stage. The update is applied only
	// when the new stage has strictly higher priority than the current
	// one; returns false when the existing stage wins.
	ApplyOutcome(ctx context.Context, id int64, stage models.OutcomeStage, at time.Time) (bool, error)

	// SetLastError records a recoverable submission failure.
	SetLastError(ctx context.Context, id int64, msg string) error

	// MarkGhost moves a still-submitted application to the ghost stage.
	// Ghost ranks below every real outcome so this is the one downgrade
	// path, and it only fires from the submitted stage.
	MarkGhost(ctx context.Context, id int64, at time.Time) (bool, error)

	// ListOpen returns applications still awaiting a terminal outcome,
	// the candidate set for inbound message matching.
	ListOpen(ctx context.Context) ([]*models.Application, error)

	// ListStale returns non-terminal applications with no outcome signal
	// since the cutoff, candidates for ghost marking.
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.Application, error)

	FunnelCounts(ctx context.Context) (map[models.Archetype]map[models.OutcomeStage]int, error)
	VersionOutcomes(ctx context.Context) ([]*VersionOutcome, error)
}

// BatchStorage - interface for application batch persistence.
// The open-batch invariant lives here: OpenBatch must be a store-level
// conditional write so concurrent processes cannot both succeed.
type BatchStorage interface {
	// OpenBatch opens a batch. Returns ErrInvariant when another batch
	// is already open.
	OpenBatch(ctx context.Context, batch *models.Batch) error
	CloseBatch(ctx context.Context, id string, applicationCount int) error
	GetBatch(ctx context.Context, id string) (*models.Batch, error)

	// GetOpenBatch returns the currently open batch or ErrNotFound.
	GetOpenBatch(ctx context.Context) (*models.Batch, error)
	IncrementCount(ctx context.Context, id string) error
}

// MessageStorage - interface for inbound message persistence
type MessageStorage interface {
	// SaveMessage inserts a message. Returns ErrConflict when the
	// external message id was already processed.
	SaveMessage(ctx context.Context, msg *models.InboundMessage) (int64, error)
	GetMessage(ctx context.Context, id int64) (*models.InboundMessage, error)
	GetMessageByExternalID(ctx context.Context, source, externalID string) (*models.InboundMessage, error)

	// UpdateMatch persists match attribution and outcome classification.
	UpdateMatch(ctx context.Context, msg *models.InboundMessage) error

	ListManualReview(ctx context.Context) ([]*models.InboundMessage, error)
	CountMessages(ctx context.Context) (int, error)
}

// SenderStorage - interface for the learned sender -> entity mapping
type SenderStorage interface {
	GetSender(ctx context.Context, address string) (*models.KnownSender, error)

	// UpsertSender inserts the sender or, on an existing address, bumps
	// last_seen and match_count and refreshes the entity.
	UpsertSender(ctx context.Context, sender *models.KnownSender) error
	ListSenders(ctx context.Context) ([]*models.KnownSender, error)

	// IsIgnored reports whether the address or its domain is on the
	// ignore list.
	IsIgnored(ctx context.Context, address string) (bool, error)
	AddIgnore(ctx context.Context, pattern string) error
}

// CallStorage - interface for phone call log persistence
type CallStorage interface {
	SaveCall(ctx context.Context, call *models.CallLog) (int64, error)
	ListCalls(ctx context.Context, limit int) ([]*models.CallLog, error)
	UpdateCallMatch(ctx context.Context, call *models.CallLog) error
}

// VariantStorage - interface for resume variant persistence
type VariantStorage interface {
	// UpsertVariant inserts or replaces the variant row for an archetype.
	UpsertVariant(ctx context.Context, variant *models.ResumeVariant) error
	GetVariant(ctx context.Context, archetype models.Archetype) (*models.ResumeVariant, error)
	ListVariants(ctx context.Context) ([]*models.ResumeVariant, error)
	UpdateAlignment(ctx context.Context, archetype models.Archetype, alignment float64) error
	MarkRewritten(ctx context.Context, archetype models.Archetype, version string, at time.Time) error
}

// CentroidStorage - interface for market centroid persistence
type CentroidStorage interface {
	// SaveCentroid inserts a centroid. Returns ErrConflict when one
	// already exists for (archetype, window_start).
	SaveCentroid(ctx context.Context, centroid *models.MarketCentroid) (int64, error)
	LatestCentroid(ctx context.Context, archetype models.Archetype) (*models.MarketCentroid, error)

	// CentroidBefore returns the most recent centroid whose window
	// started before the given time, or ErrNotFound.
	CentroidBefore(ctx context.Context, archetype models.Archetype, start time.Time) (*models.MarketCentroid, error)
	ListCentroids(ctx context.Context, archetype models.Archetype, limit int) ([]*models.MarketCentroid, error)
}

// AlertStorage - interface for drift alert persistence
type AlertStorage interface {
	SaveAlert(ctx context.Context, alert *models.DriftAlert) error
	GetAlert(ctx context.Context, id string) (*models.DriftAlert, error)

	// LatestUnacknowledged returns the newest unacknowledged alert of
	// the given type for the archetype, or ErrNotFound.
	LatestUnacknowledged(ctx context.Context, archetype models.Archetype, alertType models.AlertType) (*models.DriftAlert, error)
	ListAlerts(ctx context.Context, includeAcknowledged bool) ([]*models.DriftAlert, error)
	Acknowledge(ctx context.Context, id string) error
}

// SyncStateStorage - key/value watermarks (inbox cursor, spool flush time)
type SyncStateStorage interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// StorageManager aggregates the per-entity storages for one engine.
type StorageManager interface {
	Listings() ListingStorage
	Applications() ApplicationStorage
	Batches() BatchStorage
	Messages() MessageStorage
	Senders() SenderStorage
	Calls() CallStorage
	Variants() VariantStorage
	Centroids() CentroidStorage
	Alerts() AlertStorage
	SyncState() SyncStateStorage

	Ping(ctx context.Context) error
	Close() error
}
