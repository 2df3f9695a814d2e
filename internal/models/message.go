package models

import (
	"time"
)

// MatchMethod describes how an inbound message was attributed to an
// application.
type MatchMethod string

const (
	MatchExternalID MatchMethod = "external_id" // Structured job-board notification
	MatchFuzzy      MatchMethod = "fuzzy"       // Entity + title similarity cascade
	MatchManual     MatchMethod = "manual"      // Operator confirmation
	MatchNone       MatchMethod = "unmatched"
)

// SenderClass categorises where a message came from.
type SenderClass string

const (
	SenderJobBoard SenderClass = "structured" // Job board notification address
	SenderDirect   SenderClass = "direct"     // Employer domain
	SenderAgency   SenderClass = "agency"     // Recruitment agency domain
	SenderUnknown  SenderClass = "unknown"
)

// InboundMessage is a recruiter-side signal: an email pulled from the
// inbox or a phone call routed through the same matching cascade.
// ExternalMessageID is unique per source.
type InboundMessage struct {
	ID                int64     `json:"id"`
	ExternalMessageID string    `json:"external_message_id"`
	Source            string    `json:"source"` // "email" or "call"
	Sender            string    `json:"sender"`
	Subject           string    `json:"subject"`
	Body              string    `json:"body"`
	ReceivedAt        time.Time `json:"received_at"`

	SenderClass SenderClass `json:"sender_class"`

	// Matching result
	ApplicationID *int64      `json:"application_id,omitempty"`
	MatchMethod   MatchMethod `json:"match_method"`
	MatchScore    float64     `json:"match_score"`

	// Classified outcome
	Outcome           OutcomeStage `json:"outcome,omitempty"`
	OutcomeConfidence float64      `json:"outcome_confidence"`

	RequiresManualReview bool             `json:"requires_manual_review"`
	Candidates           []MatchCandidate `json:"candidates,omitempty"` // Ranked, at most 3
}

// MatchCandidate is one ranked possibility surfaced for manual review.
type MatchCandidate struct {
	ApplicationID int64   `json:"application_id"`
	ListingID     int64   `json:"listing_id"`
	Title         string  `json:"title"`
	Company       string  `json:"company"`
	Score         float64 `json:"score"`
}

// Validate checks the fields required before a message can be persisted.
func (m *InboundMessage) Validate() error {
	if m.ExternalMessageID == "" {
		return errRequired("message", "external_message_id")
	}
	if m.Source == "" {
		return errRequired("message", "source")
	}
	return nil
}
