package models

import (
	"time"
)

// AlertType is the kind of drift condition an alert records.
type AlertType string

const (
	AlertMarketShift      AlertType = "market_shift"
	AlertResumeStale      AlertType = "resume_stale"
	AlertRewriteTriggered AlertType = "rewrite_triggered"
)

// DriftAlert records a threshold crossing for one archetype. Alerts are
// acknowledged once consumed; the rewrite trigger acknowledges its two
// component alerts when it fires.
type DriftAlert struct {
	ID             string    `json:"id"`
	Archetype      Archetype `json:"archetype"`
	Type           AlertType `json:"type"`
	MetricValue    float64   `json:"metric_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Details        string    `json:"details,omitempty"` // JSON payload, e.g. a rewrite report
	Acknowledged   bool      `json:"acknowledged"`
	CreatedAt      time.Time `json:"created_at"`
}

// RewriteReport is the Details payload of a rewrite_triggered alert.
type RewriteReport struct {
	Archetype      Archetype `json:"archetype"`
	ShiftDistance  float64   `json:"shift_distance"`
	Staleness      float64   `json:"staleness"`
	ResumeVersion  string    `json:"resume_version"`
	GainedTerms    []string  `json:"gained_terms,omitempty"`
	LostTerms      []string  `json:"lost_terms,omitempty"`
	SuggestedFocus string    `json:"suggested_focus"`
}
