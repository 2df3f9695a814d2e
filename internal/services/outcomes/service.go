package outcomes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// Service runs the full inbound-signal pipeline: dedupe, outcome
// classification, application matching and funnel updates.
type Service struct {
	storage interfaces.StorageManager
	matcher *Matcher
	logger  arbor.ILogger
}

func NewService(storage interfaces.StorageManager, matcherConfig *common.MatcherConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		matcher: NewMatcher(storage, matcherConfig, logger),
		logger:  logger,
	}
}

// ProcessMessage ingests one inbound message. Re-ingesting a known
// external message id is a no-op. On auto-match the application outcome
// advances and the sender is learned.
func (s *Service) ProcessMessage(ctx context.Context, msg *models.InboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	msg.Outcome, msg.OutcomeConfidence = ClassifyOutcome(msg.Subject + " " + msg.Body)

	if err := s.matcher.Match(ctx, msg); err != nil {
		return err
	}

	if _, err := s.storage.Messages().SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, common.ErrConflict) {
			s.logger.Debug().
				Str("external_message_id", msg.ExternalMessageID).
				Msg("Message already processed, skipping")
			return nil
		}
		return err
	}

	if msg.ApplicationID != nil && msg.MatchMethod != models.MatchNone {
		if err := s.applyConfirmedMatch(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmMatch resolves a manual-review message against the chosen
// application and runs the same post-match bookkeeping as an auto-match.
func (s *Service) ConfirmMatch(ctx context.Context, messageID, applicationID int64) error {
	msg, err := s.storage.Messages().GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !msg.RequiresManualReview {
		return fmt.Errorf("%w: message %d is not awaiting review", common.ErrValidation, messageID)
	}
	if _, err := s.storage.Applications().GetApplication(ctx, applicationID); err != nil {
		return err
	}

	msg.ApplicationID = &applicationID
	msg.MatchMethod = models.MatchManual
	msg.RequiresManualReview = false
	msg.Candidates = nil

	if err := s.storage.Messages().UpdateMatch(ctx, msg); err != nil {
		return err
	}
	return s.applyConfirmedMatch(ctx, msg)
}

// applyConfirmedMatch learns the sender and advances the application
// funnel. The outcome update never demotes a recorded stage.
func (s *Service) applyConfirmedMatch(ctx context.Context, msg *models.InboundMessage) error {
	if msg.Source == "email" && msg.Sender != "" {
		listing, err := s.matchedListing(ctx, msg)
		if err != nil {
			return err
		}
		entity := RootLabel(SenderDomain(msg.Sender))
		if listing != nil && listing.Company != "" {
			entity = listing.Company
		}
		now := time.Now().UTC()
		if err := s.storage.Senders().UpsertSender(ctx, &models.KnownSender{
			Address:   strings.ToLower(msg.Sender),
			Entity:    entity,
			Class:     msg.SenderClass,
			FirstSeen: now,
			LastSeen:  now,
		}); err != nil {
			return err
		}
	}

	if msg.Outcome == "" || msg.ApplicationID == nil {
		return nil
	}

	advanced, err := s.storage.Applications().ApplyOutcome(ctx, *msg.ApplicationID, msg.Outcome, msg.ReceivedAt)
	if err != nil {
		return err
	}
	if advanced {
		s.logger.Info().
			Int64("application_id", *msg.ApplicationID).
			Str("outcome", string(msg.Outcome)).
			Float64("confidence", msg.OutcomeConfidence).
			Msg("Outcome applied from inbound message")
	}
	return nil
}

func (s *Service) matchedListing(ctx context.Context, msg *models.InboundMessage) (*models.Listing, error) {
	if msg.ApplicationID == nil {
		return nil, nil
	}
	app, err := s.storage.Applications().GetApplication(ctx, *msg.ApplicationID)
	if err != nil {
		return nil, err
	}
	listing, err := s.storage.Listings().GetListing(ctx, app.ListingID)
	if common.IsNotFound(err) {
		return nil, nil
	}
	return listing, err
}

// LogCall records a phone contact and routes it through the matching
// cascade as a synthetic message carrying the caller's entity and notes.
func (s *Service) LogCall(ctx context.Context, call *models.CallLog) error {
	if call.Entity == "" {
		return common.ValidationError("entity", "is required")
	}
	if call.OccurredAt.IsZero() {
		call.OccurredAt = time.Now().UTC()
	}
	if call.Outcome != "" && !call.Outcome.Valid() {
		return common.ValidationError("outcome", "is not a known stage")
	}

	id, err := s.storage.Calls().SaveCall(ctx, call)
	if err != nil {
		return err
	}
	call.ID = id

	// The cascade treats the entity as a direct-employer sender so the
	// domain step keys on the entity name.
	pseudo := &models.InboundMessage{
		ExternalMessageID: fmt.Sprintf("call-%d", id),
		Source:            "call",
		Sender:            fmt.Sprintf("caller@%s.invalid", sanitizeEntity(call.Entity)),
		Subject:           call.Entity,
		Body:              call.Notes,
		ReceivedAt:        call.OccurredAt,
	}
	if err := s.matcher.matchCascade(ctx, pseudo); err != nil {
		return err
	}

	call.ApplicationID = pseudo.ApplicationID
	call.RequiresManualReview = pseudo.RequiresManualReview
	if err := s.storage.Calls().UpdateCallMatch(ctx, call); err != nil {
		return err
	}

	if call.ApplicationID != nil && call.Outcome != "" {
		if _, err := s.storage.Applications().ApplyOutcome(ctx, *call.ApplicationID, call.Outcome, call.OccurredAt); err != nil {
			return err
		}
	}
	return nil
}

// MarkGhosted advances applications with no signal since the cutoff to
// the ghost stage. Ghost ranks below every recorded outcome so only
// still-submitted applications move.
func (s *Service) MarkGhosted(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.storage.Applications().ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	marked := 0
	for _, app := range stale {
		moved, err := s.storage.Applications().MarkGhost(ctx, app.ID, now)
		if err != nil {
			return marked, err
		}
		if moved {
			marked++
		}
	}
	if marked > 0 {
		s.logger.Info().Int("count", marked).Msg("Stale applications flagged as ghosted")
	}
	return marked, nil
}

func sanitizeEntity(entity string) string {
	lower := strings.ToLower(entity)
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
