package scheduler

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/storage"
)

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	enabled     bool
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service implements SchedulerService. Jobs run one at a time under a
// global mutex; a tick that fires while the same job's previous run is
// still going is skipped, not queued.
type Service struct {
	cron     *cron.Cron
	logger   arbor.ILogger
	db       *storage.DB // For persisting job settings
	jobMu    sync.Mutex  // Protects jobs map
	globalMu sync.Mutex  // Prevents concurrent job execution
	jobs     map[string]*jobEntry
	running  bool
}

// NewService creates a scheduler that persists job settings through the
// store's job_settings table.
func NewService(db *storage.DB, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		db:     db,
		jobs:   make(map[string]*jobEntry),
	}
}

// Start loads persisted job settings and begins ticking.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if err := s.loadJobSettings(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load job settings from store")
		// Non-critical, continue with registered defaults
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler. In-flight jobs finish.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}

	s.cron.Stop()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	return s.running
}

// RegisterJob registers a new job with the scheduler
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		enabled:     true,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// TriggerJob manually triggers a specific job to run immediately
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s is already running", name)
	}
	s.jobMu.Unlock()

	s.logger.Info().
		Str("job_name", name).
		Msg("Manually triggering job execution")

	go s.executeJob(name)
	return nil
}

// GetJobStatus returns the status of a specific job
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}

	// Next run time comes from cron
	var nextRun *time.Time
	if entry.enabled {
		for _, cronEntry := range s.cron.Entries() {
			if cronEntry.ID == entry.cronID {
				next := cronEntry.Next
				nextRun = &next
				break
			}
		}
	}

	return &interfaces.JobStatus{
		Name:        entry.name,
		Enabled:     entry.enabled,
		Schedule:    entry.schedule,
		Description: entry.description,
		LastRun:     entry.lastRun,
		NextRun:     nextRun,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}, nil
}

// GetAllJobStatuses returns all job statuses
func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	s.jobMu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.jobMu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus)
	for _, name := range names {
		status, err := s.GetJobStatus(name)
		if err == nil {
			statuses[name] = status
		}
	}
	return statuses
}

// executeJob wraps job execution with the global mutex, panic recovery,
// and status tracking.
func (s *Service) executeJob(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in job execution")

			s.jobMu.Lock()
			if entry, exists := s.jobs[name]; exists {
				entry.isRunning = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
			}
			s.jobMu.Unlock()
		}
	}()

	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Job not found")
		return
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Previous run still in flight, skipping tick")
		return
	}
	// Claimed before taking the global mutex so ticks arriving while the
	// job waits its turn are also skipped.
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	started := time.Now()

	s.logger.Info().Str("job_name", name).Msg("Job execution started")

	err := handler()

	completed := time.Now()
	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &completed
	if err != nil {
		entry.lastError = err.Error()
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("Job execution failed")
	} else {
		entry.lastError = ""
		s.logger.Info().
			Str("job_name", name).
			Dur("duration", time.Since(started)).
			Msg("Job execution completed")
	}
	schedule := entry.schedule
	description := entry.description
	enabled := entry.enabled
	lastRun := entry.lastRun
	s.jobMu.Unlock()

	if err := s.saveJobSettings(name, schedule, description, enabled, lastRun); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist job lastRun timestamp")
	}
}

// saveJobSettings persists schedule, description, enabled status and last
// run timestamp for a job.
func (s *Service) saveJobSettings(name, schedule, description string, enabled bool, lastRun *time.Time) error {
	if s.db == nil {
		return nil
	}

	var lastRunUnix interface{}
	if lastRun != nil {
		lastRunUnix = lastRun.Unix()
	}

	query := s.db.Rebind(`
		INSERT INTO job_settings (job_name, schedule, description, enabled, last_run, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET
			schedule = excluded.schedule,
			description = excluded.description,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			updated_at = excluded.updated_at`)

	_, err := s.db.DB().Exec(query, name, schedule, description, enabled, lastRunUnix, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save job settings: %w", err)
	}
	return nil
}

// loadJobSettings restores persisted schedules and last run timestamps.
// Called after jobs are registered, before the cron starts.
func (s *Service) loadJobSettings() error {
	if s.db == nil {
		return nil
	}

	rows, err := s.db.DB().Query(`SELECT job_name, schedule, enabled, last_run FROM job_settings`)
	if err != nil {
		return fmt.Errorf("failed to load job settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, schedule string
		var enabled bool
		var lastRunUnix sql.NullInt64

		if err := rows.Scan(&name, &schedule, &enabled, &lastRunUnix); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to scan job setting")
			continue
		}

		s.jobMu.Lock()
		entry, exists := s.jobs[name]
		if !exists {
			s.jobMu.Unlock()
			s.logger.Warn().Str("job_name", name).Msg("Job setting found but job not registered, skipping")
			continue
		}

		if lastRunUnix.Valid {
			lastRun := time.Unix(lastRunUnix.Int64, 0)
			entry.lastRun = &lastRun
		}

		if schedule != entry.schedule {
			s.cron.Remove(entry.cronID)
			jobName := name
			cronID, addErr := s.cron.AddFunc(schedule, func() {
				s.executeJob(jobName)
			})
			if addErr != nil {
				s.logger.Error().Err(addErr).Str("job_name", name).Msg("Invalid persisted schedule, keeping default")
				cronID, _ = s.cron.AddFunc(entry.schedule, func() {
					s.executeJob(jobName)
				})
			} else {
				entry.schedule = schedule
			}
			entry.cronID = cronID
		}

		if !enabled && entry.enabled {
			s.cron.Remove(entry.cronID)
			entry.enabled = false
			s.logger.Info().Str("job_name", name).Msg("Job disabled by persisted setting")
		}
		s.jobMu.Unlock()
	}
	return rows.Err()
}
