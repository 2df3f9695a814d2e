package spool

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"

	_ "modernc.org/sqlite"
)

// ErrSpooled is returned in place of a write error when the entity was
// captured locally for a later flush. It wraps ErrTransient so callers
// that only classify still treat the condition as retryable.
var ErrSpooled = fmt.Errorf("%w: write spooled for later sync", common.ErrTransient)

const (
	entityListing     = "listing"
	entityApplication = "application"
	entityMessage     = "message"
)

const spoolSchema = `
CREATE TABLE IF NOT EXISTS spool_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);`

// Spool is a local sqlite holding pen for writes that could not reach
// the server engine. Flush replays entries conservatively: rows are
// inserted only when missing, and recorded outcomes are never
// overwritten.
type Spool struct {
	db     *sql.DB
	logger arbor.ILogger
}

// applicationEntry carries the listing's external identity so the flush
// can resolve the remote listing id, which differs from the local one.
type applicationEntry struct {
	ListingSource     string             `json:"listing_source"`
	ListingExternalID string             `json:"listing_external_id"`
	Application       models.Application `json:"application"`
}

// New opens (creating if needed) the spool file.
func New(logger arbor.ILogger, path string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool: %w", err)
	}
	if _, err := db.Exec(spoolSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply spool schema: %w", err)
	}

	return &Spool{db: db, logger: logger}, nil
}

func (s *Spool) enqueue(ctx context.Context, entity string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode spool payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO spool_entries (entity, payload, created_at) VALUES (?, ?, ?)`,
		entity, string(data), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to write spool entry: %w", err)
	}
	s.logger.Warn().Str("entity", entity).Msg("Store unreachable, write spooled locally")
	return nil
}

// EnqueueListing captures a listing for later flush.
func (s *Spool) EnqueueListing(ctx context.Context, listing *models.Listing) error {
	return s.enqueue(ctx, entityListing, listing)
}

// EnqueueApplication captures an application plus its listing reference.
func (s *Spool) EnqueueApplication(ctx context.Context, listingSource, listingExternalID string, app *models.Application) error {
	return s.enqueue(ctx, entityApplication, &applicationEntry{
		ListingSource:     listingSource,
		ListingExternalID: listingExternalID,
		Application:       *app,
	})
}

// EnqueueMessage captures an inbound message for later flush.
func (s *Spool) EnqueueMessage(ctx context.Context, msg *models.InboundMessage) error {
	return s.enqueue(ctx, entityMessage, msg)
}

// Pending returns the number of entries awaiting flush.
func (s *Spool) Pending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spool_entries`).Scan(&count)
	return count, err
}

// Flush replays spooled entries against the target store in insertion
// order. Entries that apply cleanly or turn out to be duplicates are
// removed; the flush stops at the first transient failure so ordering
// is preserved for the next attempt. Returns the number of entries
// cleared.
func (s *Spool) Flush(ctx context.Context, target interfaces.StorageManager) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, entity, payload FROM spool_entries ORDER BY id ASC`)
	if err != nil {
		return 0, fmt.Errorf("failed to read spool: %w", err)
	}

	type entry struct {
		id      int64
		entity  string
		payload string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.entity, &e.payload); err != nil {
			rows.Close()
			return 0, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	flushed := 0
	for _, e := range entries {
		err := s.apply(ctx, target, e.entity, e.payload)
		if err != nil {
			if errors.Is(err, common.ErrTransient) {
				s.logger.Warn().Err(err).Int("remaining", len(entries)-flushed).Msg("Spool flush interrupted, store unreachable")
				return flushed, err
			}
			// Permanent per-entry failure: drop the entry but log it,
			// replaying forever would wedge the spool.
			s.logger.Error().Err(err).Int64("entry_id", e.id).Str("entity", e.entity).Msg("Spool entry could not be applied, dropping")
		}

		if _, err := s.db.ExecContext(ctx, `DELETE FROM spool_entries WHERE id = ?`, e.id); err != nil {
			return flushed, fmt.Errorf("failed to clear spool entry: %w", err)
		}
		flushed++
	}

	if flushed > 0 {
		s.logger.Info().Int("count", flushed).Msg("Spool flushed")
	}
	return flushed, nil
}

func (s *Spool) apply(ctx context.Context, target interfaces.StorageManager, entity, payload string) error {
	switch entity {
	case entityListing:
		var listing models.Listing
		if err := json.Unmarshal([]byte(payload), &listing); err != nil {
			return fmt.Errorf("%w: bad listing payload: %v", common.ErrValidation, err)
		}
		listing.ID = 0
		_, err := target.Listings().SaveListing(ctx, &listing)
		if errors.Is(err, common.ErrConflict) {
			return nil // Already present remotely
		}
		return err

	case entityApplication:
		var e applicationEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return fmt.Errorf("%w: bad application payload: %v", common.ErrValidation, err)
		}
		listing, err := target.Listings().GetListingByExternalID(ctx, e.ListingSource, e.ListingExternalID)
		if err != nil {
			return err
		}
		e.Application.ID = 0
		e.Application.ListingID = listing.ID
		_, err = target.Applications().CreateApplication(ctx, &e.Application)
		if errors.Is(err, common.ErrConflict) {
			return nil // Never overwrite the remote outcome
		}
		return err

	case entityMessage:
		var msg models.InboundMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return fmt.Errorf("%w: bad message payload: %v", common.ErrValidation, err)
		}
		msg.ID = 0
		_, err := target.Messages().SaveMessage(ctx, &msg)
		if errors.Is(err, common.ErrConflict) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("%w: unknown spool entity %q", common.ErrValidation, entity)
	}
}

// Close closes the spool file.
func (s *Spool) Close() error {
	return s.db.Close()
}
