package jobs

import (
	"context"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/evaluator"
	"github.com/wonny/newsquant/internal/snapshot"
	"github.com/wonny/newsquant/pkg/logger"
)

// OutcomeRunner evaluates pending executions
type OutcomeRunner interface {
	Run(ctx context.Context, now time.Time) (evaluator.EvalSummary, error)
}

// EvaluationJob scores executions older than the buffer
type EvaluationJob struct {
	runner OutcomeRunner
	now    func() time.Time
	logger *logger.Logger
}

// NewEvaluationJob creates a new evaluation job
func NewEvaluationJob(runner OutcomeRunner, log *logger.Logger) *EvaluationJob {
	return &EvaluationJob{runner: runner, now: time.Now, logger: log}
}

// Name returns the job name
func (j *EvaluationJob) Name() string {
	return "evaluation"
}

// Schedule returns the cron schedule
func (j *EvaluationJob) Schedule() string {
	return EvaluationSchedule
}

// Run executes the evaluation
func (j *EvaluationJob) Run(ctx context.Context) error {
	summary, err := j.runner.Run(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	j.logger.WithFields(map[string]interface{}{
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
	}).Info("Scheduled evaluation finished")
	return nil
}

// SnapshotTaker records account values and positions
type SnapshotTaker interface {
	Take(ctx context.Context, now time.Time) (snapshot.Result, error)
}

// SnapshotJob records an account snapshot after the close
type SnapshotJob struct {
	taker  SnapshotTaker
	now    func() time.Time
	logger *logger.Logger
}

// NewSnapshotJob creates a new snapshot job
func NewSnapshotJob(taker SnapshotTaker, log *logger.Logger) *SnapshotJob {
	return &SnapshotJob{taker: taker, now: time.Now, logger: log}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "snapshot"
}

// Schedule returns the cron schedule
func (j *SnapshotJob) Schedule() string {
	return SnapshotSchedule
}

// Timeout bounds the broker session
func (j *SnapshotJob) Timeout() time.Duration {
	return 2 * time.Minute
}

// Run takes the snapshot
func (j *SnapshotJob) Run(ctx context.Context) error {
	_, err := j.taker.Take(ctx, j.now().UTC())
	return err
}

// BriefWriter renders and sends the daily brief
type BriefWriter interface {
	Run(ctx context.Context, clock contracts.RunClock) (string, error)
}

// BriefJob writes the daily markdown brief
type BriefJob struct {
	writer BriefWriter
	now    func() time.Time
	logger *logger.Logger
}

// NewBriefJob creates a new brief job
func NewBriefJob(writer BriefWriter, log *logger.Logger) *BriefJob {
	return &BriefJob{writer: writer, now: time.Now, logger: log}
}

// Name returns the job name
func (j *BriefJob) Name() string {
	return "daily_brief"
}

// Schedule returns the cron schedule
func (j *BriefJob) Schedule() string {
	return BriefSchedule
}

// MaxRetries limits resends: notifiers are not idempotent
func (j *BriefJob) MaxRetries() int {
	return 1
}

// Run writes the brief
func (j *BriefJob) Run(ctx context.Context) error {
	path, err := j.writer.Run(ctx, contracts.NewRunClock(j.now()))
	if err != nil {
		return err
	}
	j.logger.WithField("path", path).Info("Scheduled brief written")
	return nil
}
