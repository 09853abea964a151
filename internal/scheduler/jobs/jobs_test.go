package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/evaluator"
	"github.com/wonny/newsquant/internal/execution"
	"github.com/wonny/newsquant/internal/pipeline"
	"github.com/wonny/newsquant/internal/snapshot"
	"github.com/wonny/newsquant/pkg/logger"
)

type fakeRunner struct {
	cfg pipeline.RunConfig
	err error
}

func (f *fakeRunner) Run(_ context.Context, cfg pipeline.RunConfig) (*pipeline.RunResult, error) {
	f.cfg = cfg
	decision := execution.GateDecision{Reason: execution.GateReasonBelowThreshold}
	return &pipeline.RunResult{RunID: cfg.RunID, Decision: &decision}, f.err
}

type fakeEvaluator struct{ now time.Time }

func (f *fakeEvaluator) Run(_ context.Context, now time.Time) (evaluator.EvalSummary, error) {
	f.now = now
	return evaluator.EvalSummary{Inserted: 1}, nil
}

type fakeTaker struct{ err error }

func (f fakeTaker) Take(context.Context, time.Time) (snapshot.Result, error) {
	return snapshot.Result{}, f.err
}

type fakeBrief struct{ clock contracts.RunClock }

func (f *fakeBrief) Run(_ context.Context, clock contracts.RunClock) (string, error) {
	f.clock = clock
	return "/tmp/brief.md", nil
}

var fixedNow = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

func TestSchedulesParse(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	for _, schedule := range []string{DailyRunSchedule, SnapshotSchedule, EvaluationSchedule, BriefSchedule} {
		_, err := parser.Parse(schedule)
		assert.NoError(t, err, schedule)
	}

	sched, err := parser.Parse(DailyRunSchedule)
	require.NoError(t, err)
	friday := time.Date(2025, 6, 6, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 9, 14, 0, 0, 0, time.UTC), sched.Next(friday), "weekend is skipped")
}

func TestDailyRunJob(t *testing.T) {
	runner := &fakeRunner{}
	job := NewDailyRunJob(runner, logger.NewNop())
	job.now = func() time.Time { return fixedNow }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "run_20250602_140000", runner.cfg.RunID)
	assert.Equal(t, fixedNow, runner.cfg.Now)
	assert.Equal(t, 0, job.MaxRetries(), "orders are never retried")

	runner.err = errors.New("ingest failed")
	assert.Error(t, job.Run(context.Background()))
}

func TestReportingJobs(t *testing.T) {
	ev := &fakeEvaluator{}
	evalJob := NewEvaluationJob(ev, logger.NewNop())
	evalJob.now = func() time.Time { return fixedNow }
	require.NoError(t, evalJob.Run(context.Background()))
	assert.Equal(t, fixedNow, ev.now)

	snapJob := NewSnapshotJob(fakeTaker{err: errors.New("account: refused")}, logger.NewNop())
	assert.Error(t, snapJob.Run(context.Background()))

	br := &fakeBrief{}
	briefJob := NewBriefJob(br, logger.NewNop())
	briefJob.now = func() time.Time { return fixedNow }
	require.NoError(t, briefJob.Run(context.Background()))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), br.clock.DayStart)

	names := []string{NewDailyRunJob(&fakeRunner{}, logger.NewNop()).Name(), evalJob.Name(), snapJob.Name(), briefJob.Name()}
	assert.Equal(t, []string{"daily_run", "evaluation", "snapshot", "daily_brief"}, names)
}
