package interfaces

import (
	"time"
)

// JobStatus describes the state of a scheduled job
type JobStatus struct {
	Name        string     `json:"name"`
	Enabled     bool       `json:"enabled"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

// SchedulerService manages recurring jobs. At most one run of a given
// job is active at a time; a tick that arrives while the previous run is
// still going is skipped.
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool

	RegisterJob(name, schedule, description string, handler func() error) error
	TriggerJob(name string) error
	GetJobStatus(name string) (*JobStatus, error)
	GetAllJobStatuses() map[string]*JobStatus
}
