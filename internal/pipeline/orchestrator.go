package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/newsquant/internal/analyzer"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/execution"
	"github.com/wonny/newsquant/internal/ingest"
	"github.com/wonny/newsquant/internal/signals"
	"github.com/wonny/newsquant/pkg/logger"
)

// AlertProcessor records keyword hits over newly ingested items.
// Its failures are logged and never affect the run.
type AlertProcessor interface {
	Process(ctx context.Context, items []contracts.RawItem, now time.Time) (int, error)
}

// Orchestrator drives one daily run:
// Collect → Ingest → Analyze → Select → Gate → Execute
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	collector   contracts.Collector
	dedup       *ingest.Deduplicator
	analyzer    *analyzer.Analyzer
	selector    *signals.Selector
	gate        *execution.RiskGate
	coordinator *execution.Coordinator

	alerts   AlertProcessor
	observer contracts.Observer
	logger   *logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	collector contracts.Collector,
	dedup *ingest.Deduplicator,
	an *analyzer.Analyzer,
	selector *signals.Selector,
	gate *execution.RiskGate,
	coordinator *execution.Coordinator,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		collector:   collector,
		dedup:       dedup,
		analyzer:    an,
		selector:    selector,
		gate:        gate,
		coordinator: coordinator,
		logger:      log.WithComponent("orchestrator"),
	}
}

// WithAlerts enables keyword alerts on newly ingested items
func (o *Orchestrator) WithAlerts(a AlertProcessor) *Orchestrator {
	o.alerts = a
	return o
}

// WithObserver publishes run events to obs
func (o *Orchestrator) WithObserver(obs contracts.Observer) *Orchestrator {
	o.observer = obs
	return o
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	RunID string
	Now   time.Time
}

// RunResult holds the results of a complete pipeline run.
// A nil Execution with a nil Error is a normal no-trade day.
type RunResult struct {
	RunID     string
	Clock     contracts.RunClock
	Stages    []contracts.StageResult
	Candidate *contracts.Signal
	Decision  *execution.GateDecision
	Execution *contracts.Execution
	Duration  time.Duration
	Error     error
}

// Traded reports whether an attempt reached the broker and was recorded without error
func (r *RunResult) Traded() bool {
	return r.Execution != nil && !r.Execution.Failed()
}

// Run executes the daily pipeline. Ingestion, selection and cap-count failures
// abort the run before any order (fail-closed). A failed attempt is not an
// error of the run: it is recorded in the audit row.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	startTime := time.Now()
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.RunID == "" {
		cfg.RunID = GenerateRunID(cfg.Now)
	}

	result := &RunResult{
		RunID: cfg.RunID,
		Clock: contracts.NewRunClock(cfg.Now),
	}
	ctx = logger.ContextWithRunID(ctx, cfg.RunID)
	log := o.logger.WithContext(ctx)

	log.WithFields(map[string]interface{}{
		"day_start": result.Clock.DayStart.Format(time.RFC3339),
		"collector": o.collector.Name(),
	}).Info("Starting pipeline run")
	o.publish(contracts.Event{Type: contracts.EventRunStarted, RunID: cfg.RunID, Time: result.Clock.Now})

	err := o.run(ctx, result)
	result.Duration = time.Since(startTime)
	result.Error = err

	o.publish(contracts.Event{
		Type:  contracts.EventRunFinished,
		RunID: cfg.RunID,
		Time:  result.Clock.Now,
		Data: map[string]any{
			"failed":      err != nil,
			"traded":      result.Traded(),
			"duration_ms": result.Duration.Milliseconds(),
		},
	})

	if err != nil {
		log.WithError(err).Error("Pipeline run aborted: no trade")
		return result, err
	}

	log.WithFields(map[string]interface{}{
		"duration": result.Duration.Seconds(),
		"stages":   len(result.Stages),
		"traded":   result.Traded(),
	}).Info("Pipeline run completed")

	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, result *RunResult) error {
	clock := result.Clock

	// COLLECT
	stage := o.begin(contracts.StageCollect)
	items := o.collector.Collect(ctx)
	o.complete(result, stage.done(0, len(items), nil), nil)

	// INGEST
	stage = o.begin(contracts.StageIngest)
	fresh, err := o.dedup.Ingest(ctx, items)
	o.complete(result, stage.done(len(items), len(fresh), err), nil)
	if err != nil {
		return fmt.Errorf("%s failed: %w", contracts.StageIngest, err)
	}
	o.processAlerts(ctx, fresh, clock.Now)

	// ANALYZE
	stage = o.begin(contracts.StageAnalyze)
	titles := contracts.Titles(fresh)
	batches := o.analyzer.AnalyzeBatches(ctx, titles)
	sigs, failures := analyzer.Flatten(batches)
	analyzed := stage.done(len(titles), len(sigs), nil)
	analyzed.Metadata = map[string]interface{}{
		"batches":        len(batches),
		"batch_failures": failures,
	}
	o.complete(result, analyzed, map[string]any{"batch_failures": failures})

	// SELECT
	stage = o.begin(contracts.StageSelect)
	if _, err := o.selector.Persist(ctx, sigs, clock); err != nil {
		o.complete(result, stage.done(len(sigs), 0, err), nil)
		return fmt.Errorf("%s failed: %w", contracts.StageSelect, err)
	}
	candidate, err := o.selector.Select(ctx, clock)
	selected := 0
	if candidate != nil {
		selected = 1
	}
	o.complete(result, stage.done(len(sigs), selected, err), nil)
	if err != nil {
		return fmt.Errorf("%s failed: %w", contracts.StageSelect, err)
	}
	result.Candidate = candidate
	if candidate != nil {
		o.publish(contracts.Event{
			Type:  contracts.EventCandidateSelected,
			RunID: result.RunID,
			Stage: contracts.StageSelect,
			Time:  clock.Now,
			Data: map[string]any{
				"signal_id": candidate.ID,
				"ticker":    candidate.TickerOrEmpty(),
				"sentiment": candidate.Sentiment,
			},
		})
	}

	// GATE
	stage = o.begin(contracts.StageGate)
	decision, err := o.gate.Check(ctx, candidate, clock.DayStart)
	approved := 0
	if err == nil && decision.Approved {
		approved = 1
	}
	o.complete(result, stage.done(selected, approved, err), nil)
	if err != nil {
		return fmt.Errorf("%s failed: %w", contracts.StageGate, err)
	}
	result.Decision = &decision
	o.publish(contracts.Event{
		Type:  contracts.EventGateDecided,
		RunID: result.RunID,
		Stage: contracts.StageGate,
		Time:  clock.Now,
		Data: map[string]any{
			"approved": decision.Approved,
			"reason":   string(decision.Reason),
		},
	})
	if !decision.Approved {
		return nil
	}

	// EXECUTE
	stage = o.begin(contracts.StageExecute)
	exec, err := o.coordinator.Execute(ctx, candidate.TickerOrEmpty(), clock.DayStart)
	if errors.Is(err, contracts.ErrDailyCapReached) {
		// another run won the slot between the gate and the audit write
		o.complete(result, stage.done(1, 0, nil), nil)
		return nil
	}
	recorded := 0
	if exec != nil {
		recorded = 1
	}
	o.complete(result, stage.done(1, recorded, err), nil)
	result.Execution = exec
	if exec != nil {
		o.publish(contracts.Event{
			Type:  contracts.EventExecutionRecorded,
			RunID: result.RunID,
			Stage: contracts.StageExecute,
			Time:  clock.Now,
			Data: map[string]any{
				"execution_id": exec.ID,
				"ticker":       exec.Ticker,
				"dry_run":      exec.DryRun,
				"state":        string(execution.TerminalState(exec)),
			},
		})
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", contracts.StageExecute, err)
	}
	return nil
}

func (o *Orchestrator) processAlerts(ctx context.Context, fresh []contracts.RawItem, now time.Time) {
	if o.alerts == nil || len(fresh) == 0 {
		return
	}
	if _, err := o.alerts.Process(ctx, fresh, now); err != nil {
		o.logger.WithContext(ctx).WithError(err).Warn("Keyword alerts failed, continuing")
	}
}

// stageTimer measures one stage
type stageTimer struct {
	stage contracts.Stage
	start time.Time
}

func (o *Orchestrator) begin(stage contracts.Stage) stageTimer {
	o.logger.Infof("Running %s: %s", stage, stage.Description())
	return stageTimer{stage: stage, start: time.Now()}
}

func (t stageTimer) done(in, out int, err error) contracts.StageResult {
	r := contracts.StageResult{
		Stage:       t.stage,
		Success:     err == nil,
		InputCount:  in,
		OutputCount: out,
		DurationMs:  time.Since(t.start).Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func (o *Orchestrator) complete(result *RunResult, r contracts.StageResult, data map[string]any) {
	result.Stages = append(result.Stages, r)

	o.logger.WithFields(map[string]interface{}{
		"stage":   r.Stage,
		"success": r.Success,
		"input":   r.InputCount,
		"output":  r.OutputCount,
		"ms":      r.DurationMs,
	}).Info(fmt.Sprintf("%s completed", r.Stage))

	o.publish(contracts.Event{
		Type:   contracts.EventStageCompleted,
		RunID:  result.RunID,
		Stage:  r.Stage,
		Time:   result.Clock.Now,
		Result: &r,
		Data:   data,
	})
}

func (o *Orchestrator) publish(e contracts.Event) {
	if o.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithError(fmt.Errorf("panic: %v", r)).Error("Observer panicked")
		}
	}()
	o.observer.OnEvent(e)
}

// GenerateRunID generates a run ID from the run time
func GenerateRunID(now time.Time) string {
	return fmt.Sprintf("run_%s", now.UTC().Format("20060102_150405"))
}
