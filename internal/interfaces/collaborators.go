package interfaces

import (
	"context"

	"github.com/wmarzella/ronin/internal/models"
)

// Scraper fetches new listings from a job board. Board internals are
// outside this system; only the contract is defined here.
type Scraper interface {
	Scrape(ctx context.Context, source string) ([]*models.Listing, error)
}

// Submitter performs the actual application submission for one listing
// using the given resume variant. Implementations drive whatever
// automation the board requires; this system only observes success or
// failure.
type Submitter interface {
	Submit(ctx context.Context, listing *models.Listing, variant *models.ResumeVariant) error
}

// VersionStore resolves the current content version of a resume file.
// Version ids are opaque; equal content yields equal ids.
type VersionStore interface {
	CurrentVersion(path string) (string, error)
}
