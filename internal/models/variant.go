package models

import (
	"time"
)

// ResumeVariant is the tracked resume for one archetype. Exactly one
// variant exists per archetype; CurrentVersion identifies the content
// revision that submissions stamp onto applications.
type ResumeVariant struct {
	Archetype      Archetype `json:"archetype"`
	FilePath       string    `json:"file_path"`
	CurrentVersion string    `json:"current_version"`

	// Embedding of the variant text, used for alignment against market
	// centroids.
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`

	// AlignmentScore is cosine similarity against the latest centroid
	// for the archetype. Staleness is 1 - alignment.
	AlignmentScore float64 `json:"alignment_score"`

	LastRewritten *time.Time `json:"last_rewritten,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Staleness returns the distance between the variant and the market
// centroid it was last aligned against.
func (v *ResumeVariant) Staleness() float64 {
	return 1.0 - v.AlignmentScore
}
