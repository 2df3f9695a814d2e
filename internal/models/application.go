package models

import (
	"time"
)

// Application records one submission against a listing. At most one
// application exists per listing.
type Application struct {
	ID        int64  `json:"id"`
	ListingID int64  `json:"listing_id"`
	BatchID   string `json:"batch_id,omitempty"`

	// Profile state captured at submission time. Outcome signal is only
	// meaningful relative to the resume that was actually sent.
	Archetype     Archetype `json:"archetype"`
	ResumeVersion string    `json:"resume_version"` // Variant version id at submission

	AppliedAt    time.Time    `json:"applied_at"`
	OutcomeStage OutcomeStage `json:"outcome_stage"`
	OutcomeAt    *time.Time   `json:"outcome_at,omitempty"`

	// SelectionRationale is the selector's decision record at emission
	// time, JSON-encoded: scores, alignment, combined fit, thresholds.
	SelectionRationale string `json:"selection_rationale,omitempty"`

	LastError string `json:"last_error,omitempty"` // Recoverable submit failure, cleared on success
}

// Validate checks the fields required before an application can be persisted.
func (a *Application) Validate() error {
	if a.ListingID == 0 {
		return errRequired("application", "listing_id")
	}
	if !a.Archetype.Valid() {
		return errRequired("application", "archetype")
	}
	return nil
}
