package models

import (
	"time"
)

// MarketCentroid is the mean embedding of job descriptions for one
// archetype over one time window. Unique per (archetype, window_start).
type MarketCentroid struct {
	ID          int64     `json:"id"`
	Archetype   Archetype `json:"archetype"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Centroid       []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model"`

	// JDCount is the number of descriptions aggregated. Windows below
	// the configured minimum are never persisted.
	JDCount int `json:"jd_count"`

	// ShiftFromPrevious is cosine distance to the preceding window's
	// centroid, zero for the first window.
	ShiftFromPrevious float64 `json:"shift_from_previous"`

	TopGainedTerms []string `json:"top_gained_terms,omitempty"`
	TopLostTerms   []string `json:"top_lost_terms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
