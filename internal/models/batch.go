package models

import (
	"time"
)

// BatchStatus is the lifecycle state of an application batch.
type BatchStatus string

const (
	BatchOpen   BatchStatus = "open"
	BatchClosed BatchStatus = "closed"
)

// Batch groups applications submitted under a single profile state. The
// store guarantees at most one open batch at a time: the shared profile
// means concurrent batches would submit inconsistent resumes.
type Batch struct {
	ID           string      `json:"id"`
	Archetype    Archetype   `json:"archetype"`
	ProfileState string      `json:"profile_state"` // Variant version id the profile was set to
	Status       BatchStatus `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`

	// ApplicationCount is the number of successful submissions. Failed
	// submissions do not advance it.
	ApplicationCount int `json:"application_count"`
}
