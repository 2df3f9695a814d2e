package models

import (
	"time"
)

// CallLog is a manually captured phone contact. Calls carry the same
// signal as email outcomes and flow through the same matching cascade.
type CallLog struct {
	ID           int64     `json:"id"`
	CallerNumber string    `json:"caller_number"`
	CallerName   string    `json:"caller_name,omitempty"`
	Entity       string    `json:"entity"` // Company or agency named on the call
	Notes        string    `json:"notes"`
	OccurredAt   time.Time `json:"occurred_at"`

	ApplicationID        *int64       `json:"application_id,omitempty"`
	Outcome              OutcomeStage `json:"outcome,omitempty"`
	RequiresManualReview bool         `json:"requires_manual_review"`
}
