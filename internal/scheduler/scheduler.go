package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/newsquant/pkg/logger"
)

// ErrJobRunning is returned when a job is started while its previous run is still active
var ErrJobRunning = errors.New("job already running")

// Defaults applied to jobs that do not implement RetryPolicy or TimeoutPolicy
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = time.Minute
	DefaultJobTimeout = 30 * time.Minute
)

// Config holds scheduler defaults
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration
	Location   *time.Location
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// DefaultConfig returns the defaults used by the daemon
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries}.withDefaults()
}

type entry struct {
	job     Job
	id      cron.EntryID
	running sync.Mutex
}

// Scheduler manages scheduled jobs. A job never overlaps with itself:
// a tick that finds the previous run still active is skipped.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	logger  *logger.Logger
	jobs    map[string]*entry
	history map[string]*JobHistory
	mu      sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler
func New(cfg Config, log *logger.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location)),
		cfg:     cfg,
		logger:  log.WithComponent("scheduler"),
		jobs:    make(map[string]*entry),
		history: make(map[string]*JobHistory),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.wg.Add(1)
		defer s.wg.Done()
		_, _ = s.runEntry(s.ctx, e)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}
	e.id = id

	s.jobs[jobName] = e
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":         jobName,
		"schedule":    job.Schedule(),
		"max_retries": s.retriesFor(job),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job from the scheduler
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.jobs[jobName]
	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	s.cron.Remove(e.id)
	delete(s.jobs, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	s.cancel()
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs a job immediately and waits for it
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	e, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", jobName)
	}

	return s.runEntry(ctx, e)
}

// runEntry executes a job with its retry policy and records the result
func (s *Scheduler) runEntry(ctx context.Context, e *entry) (JobResult, error) {
	job := e.job
	jobName := job.Name()
	startTime := time.Now()
	log := s.logger.WithField("job", jobName)

	if !e.running.TryLock() {
		log.Warn("Previous run still active, skipping")
		result := JobResult{JobName: jobName, StartTime: startTime, EndTime: startTime, Skipped: true, Error: ErrJobRunning.Error()}
		s.record(result)
		return result, ErrJobRunning
	}
	defer e.running.Unlock()

	log.Info("Job started")

	maxRetries := s.retriesFor(job)
	timeout := s.timeoutFor(job)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		lastErr = s.attempt(ctx, job, timeout)
		if lastErr == nil {
			break
		}

		if attempt == maxRetries || ctx.Err() != nil {
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempts,
			"wait":    s.cfg.RetryDelay.String(),
		}).WithError(lastErr).Warn("Job execution failed, retrying")

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
			continue
		}
		break
	}

	endTime := time.Now()
	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	s.record(result)

	if result.Success {
		log.WithFields(map[string]interface{}{
			"duration": result.Duration,
			"attempts": attempts,
		}).Info("Job completed successfully")
		return result, nil
	}

	log.WithFields(map[string]interface{}{
		"duration": result.Duration,
		"attempts": attempts,
	}).WithError(lastErr).Error("Job failed")
	return result, lastErr
}

// attempt runs job once under timeout, converting a panic into an error
func (s *Scheduler) attempt(ctx context.Context, job Job, timeout time.Duration) (err error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(runCtx)
}

func (s *Scheduler) record(result JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if history, exists := s.history[result.JobName]; exists {
		history.AddResult(result)
	}
}

func (s *Scheduler) retriesFor(job Job) int {
	if p, ok := job.(RetryPolicy); ok {
		return max(0, p.MaxRetries())
	}
	return s.cfg.MaxRetries
}

func (s *Scheduler) timeoutFor(job Job) time.Duration {
	if p, ok := job.(TimeoutPolicy); ok && p.Timeout() > 0 {
		return p.Timeout()
	}
	return s.cfg.JobTimeout
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history, nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// NextRun returns the next scheduled time of a job. Before Start it is derived from the schedule.
func (s *Scheduler) NextRun(jobName string) time.Time {
	s.mu.RLock()
	e, exists := s.jobs[jobName]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}
	}
	entry := s.cron.Entry(e.id)
	if entry.Next.IsZero() && entry.Schedule != nil {
		return entry.Schedule.Next(time.Now().In(s.cfg.Location))
	}
	return entry.Next
}

// GetJobStats returns statistics for all jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, e := range s.jobs {
		history := s.history[jobName]
		failedResults := history.GetFailedResults()

		st := JobStats{
			JobName:      jobName,
			Schedule:     e.job.Schedule(),
			MaxRetries:   s.retriesFor(e.job),
			TotalRuns:    len(history.Results),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
		}

		for i := range history.Results {
			r := history.Results[i]
			switch {
			case r.Skipped:
				st.SkippedCount++
			case r.Success:
				st.SuccessCount++
				st.LastSuccess = &history.Results[i].StartTime
			default:
				st.LastFailure = &history.Results[i].StartTime
			}
			st.LastRun = &history.Results[i].StartTime
		}

		stats[jobName] = st
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	MaxRetries   int        `json:"max_retries"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SkippedCount int        `json:"skipped_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
