package models

import (
	"time"
)

// JobType is the contract shape extracted from a job description.
type JobType string

const (
	JobTypeContract  JobType = "contract"
	JobTypePermanent JobType = "permanent"
	JobTypeUnknown   JobType = "unknown"
)

// Listing is a scraped job advertisement plus the classification attached
// to it. ExternalID is unique per source board.
type Listing struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id"`
	Source      string    `json:"source"`            // Board the listing was scraped from
	Keyword     string    `json:"keyword,omitempty"` // Search keyword the scrape ran under
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Salary      string    `json:"salary,omitempty"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	PostedDate  time.Time `json:"posted_date"`
	FirstSeen   time.Time `json:"first_seen"`

	// Classification output. Scores are normalised to sum to 1.0 across
	// all archetypes once the classifier has run.
	ArchetypeScores map[Archetype]float64 `json:"archetype_scores,omitempty"`
	Primary         Archetype             `json:"primary_archetype,omitempty"`
	JobType         JobType               `json:"job_type,omitempty"`
	Seniority       string                `json:"seniority,omitempty"`
	TechTags        []string              `json:"tech_tags,omitempty"`

	// Embedding of the description text, tagged with the model that
	// produced it.
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`

	Classified bool `json:"classified"`

	// IntelligenceOnly routes the listing to market tracking; it is never
	// queued for application once set.
	IntelligenceOnly bool `json:"intelligence_only"`
}

// Validate checks the fields required before a listing can be persisted.
func (l *Listing) Validate() error {
	if l.ExternalID == "" {
		return errRequired("listing", "external_id")
	}
	if l.Title == "" {
		return errRequired("listing", "title")
	}
	if l.Source == "" {
		return errRequired("listing", "source")
	}
	return nil
}
