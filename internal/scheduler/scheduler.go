// Package scheduler fires rebalance and maintenance jobs on the
// strategy's market-hours schedule. All cron expressions are evaluated
// in the configured exchange timezone, not the host's.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Scheduler manages the job schedule. Jobs never overlap themselves: a
// slot firing while the previous execution of the same job is still
// active is skipped. Failed jobs are not retried; the next scheduled
// slot is the retry.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	logger   *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	history map[string]*JobHistory
	running map[string]bool
}

// New creates a scheduler evaluating cron expressions in the given
// timezone, e.g. "America/Toronto".
func New(timezone string, log *logger.Logger) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(location)),
		location: location,
		logger:   log,
		jobs:     make(map[string]Job),
		history:  make(map[string]*JobHistory),
		running:  make(map[string]bool),
	}, nil
}

// Location returns the timezone the schedule runs in.
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// AddJob registers a job under every cron slot it declares.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	specs := job.Schedules()
	if len(specs) == 0 {
		return fmt.Errorf("job %s declares no schedule", jobName)
	}
	for _, spec := range specs {
		if _, err := s.cron.AddFunc(spec, func() {
			s.runJob(job)
		}); err != nil {
			return fmt.Errorf("failed to schedule job %s at %q: %w", jobName, spec, err)
		}
	}

	s.jobs[jobName] = job
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":       jobName,
		"schedules": strings.Join(specs, ", "),
		"timezone":  s.location.String(),
	}).Info("Job added to scheduler")

	return nil
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start() {
	s.logger.WithField("timezone", s.location.String()).Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunJob fires a job immediately, outside its schedule. The execution
// happens in the background under the same no-overlap guard.
func (s *Scheduler) RunJob(jobName string) error {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	go s.runJob(job)
	return nil
}

// runJob executes one job occurrence and records the result.
func (s *Scheduler) runJob(job Job) {
	jobName := job.Name()

	s.mu.Lock()
	if s.running[jobName] {
		s.mu.Unlock()
		s.logger.WithField("job", jobName).Warn("Previous execution still active, skipping this slot")
		return
	}
	s.running[jobName] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[jobName] = false
		s.mu.Unlock()
	}()

	startTime := time.Now()
	s.logger.WithField("job", jobName).Info("Job started")

	err := job.Run(context.Background())
	endTime := time.Now()

	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": result.Duration,
		}).Error("Job failed, waiting for next scheduled slot")
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"duration": result.Duration,
	}).Info("Job completed")
}

// NextRuns returns the next n scheduled firing times across all jobs,
// soonest first. Before Start the cron entries carry no next time and
// the result is empty.
func (s *Scheduler) NextRuns(n int) []time.Time {
	entries := s.cron.Entries()

	times := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		if !entry.Next.IsZero() {
			times = append(times, entry.Next.In(s.location))
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	if n > 0 && len(times) > n {
		times = times[:n]
	}
	return times
}

// RunningJobs lists the jobs currently executing.
func (s *Scheduler) RunningJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.running))
	for name, active := range s.running {
		if active {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// History returns the execution history for one job.
func (s *Scheduler) History(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}
	return history, nil
}

// JobStats summarizes every registered job for the status API.
func (s *Scheduler) JobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for jobName, history := range s.history {
		failed := history.Failed()

		var lastRun, lastSuccess, lastFailure *time.Time
		if latest := history.Latest(1); len(latest) > 0 {
			last := latest[0]
			lastRun = &last.StartTime
			if last.Success {
				lastSuccess = &last.StartTime
			} else {
				lastFailure = &last.StartTime
			}
		}

		stats[jobName] = JobStats{
			JobName:      jobName,
			Schedules:    s.jobs[jobName].Schedules(),
			TotalRuns:    len(history.Results),
			SuccessCount: len(history.Results) - len(failed),
			FailureCount: len(failed),
			SuccessRate:  history.SuccessRate(),
			LastRun:      lastRun,
			LastSuccess:  lastSuccess,
			LastFailure:  lastFailure,
		}
	}
	return stats
}

// JobStats summarizes one job's execution history
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedules    []string   `json:"schedules"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
