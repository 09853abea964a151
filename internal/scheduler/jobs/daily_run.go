package jobs

import (
	"context"
	"time"

	"github.com/wonny/newsquant/internal/pipeline"
	"github.com/wonny/newsquant/pkg/logger"
)

// Cron schedules (with seconds, UTC)
const (
	DailyRunSchedule   = "0 0 14 * * 1-5" // weekdays 14:00, after the US open
	SnapshotSchedule   = "0 30 21 * * *"
	EvaluationSchedule = "0 0 22 * * *"
	BriefSchedule      = "0 30 22 * * *"
)

// PipelineRunner runs one daily pipeline
type PipelineRunner interface {
	Run(ctx context.Context, cfg pipeline.RunConfig) (*pipeline.RunResult, error)
}

// DailyRunJob runs collect → execute once per weekday.
// It is never retried: a failed run means no trade today.
type DailyRunJob struct {
	runner PipelineRunner
	now    func() time.Time
	logger *logger.Logger
}

// NewDailyRunJob creates a new daily run job
func NewDailyRunJob(runner PipelineRunner, log *logger.Logger) *DailyRunJob {
	return &DailyRunJob{
		runner: runner,
		now:    time.Now,
		logger: log,
	}
}

// Name returns the job name
func (j *DailyRunJob) Name() string {
	return "daily_run"
}

// Schedule returns the cron schedule
func (j *DailyRunJob) Schedule() string {
	return DailyRunSchedule
}

// MaxRetries disables retries
func (j *DailyRunJob) MaxRetries() int {
	return 0
}

// Timeout bounds the whole run
func (j *DailyRunJob) Timeout() time.Duration {
	return 20 * time.Minute
}

// Run executes the pipeline
func (j *DailyRunJob) Run(ctx context.Context) error {
	now := j.now()
	result, err := j.runner.Run(ctx, pipeline.RunConfig{
		RunID: pipeline.GenerateRunID(now),
		Now:   now,
	})
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"run_id": result.RunID,
		"traded": result.Traded(),
	}
	if result.Decision != nil {
		fields["gate"] = string(result.Decision.Reason)
	}
	j.logger.WithFields(fields).Info("Scheduled daily run finished")
	return nil
}
