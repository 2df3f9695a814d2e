package batch

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/models"
)

// ManualSubmitter is the default Submitter. Board automation lives
// outside this system; the operator submits through the board UI and
// this implementation records the intent as already carried out.
type ManualSubmitter struct {
	logger arbor.ILogger
}

func NewManualSubmitter(logger arbor.ILogger) *ManualSubmitter {
	return &ManualSubmitter{logger: logger}
}

func (m *ManualSubmitter) Submit(_ context.Context, listing *models.Listing, variant *models.ResumeVariant) error {
	m.logger.Info().
		Int64("listing_id", listing.ID).
		Str("title", listing.Title).
		Str("company", listing.Company).
		Str("resume", variant.FilePath).
		Str("resume_version", variant.CurrentVersion).
		Msg("Submit with the named resume variant")
	return nil
}
