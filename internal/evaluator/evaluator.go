package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/marketcal"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
)

// Forward offsets in trading sessions
const (
	ShortHorizon = 3
	LongHorizon  = 7
)

var (
	// ErrCalendarTooShort is returned when the session window ends before T+7
	ErrCalendarTooShort = errors.New("calendar does not extend to T+7")

	// ErrMissingPrice is returned when a required close is absent
	ErrMissingPrice = errors.New("missing close price")
)

// Store reads unresolved executions and writes outcomes
type Store interface {
	PendingExecutions(ctx context.Context, createdBefore time.Time, limit int) ([]contracts.Execution, error)
	// InsertOutcome returns false when an outcome for the execution already exists
	InsertOutcome(ctx context.Context, o *contracts.Outcome) (bool, error)
}

// Config controls the evaluation batch
type Config struct {
	Benchmark     string
	Buffer        time.Duration
	BatchLimit    int
	CallTimeout   time.Duration
	LookbackDays  int
	LookaheadDays int
}

// ConfigFrom maps application config
func ConfigFrom(cfg config.EvaluationConfig) Config {
	return Config{
		Benchmark:   cfg.Benchmark,
		Buffer:      cfg.Buffer,
		BatchLimit:  cfg.BatchLimit,
		CallTimeout: cfg.CallTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Benchmark == "" {
		c.Benchmark = "SPY"
	}
	if c.Buffer <= 0 {
		c.Buffer = 48 * time.Hour
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 20 * time.Second
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 10
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 25
	}
	return c
}

// EvalSummary counts what one run did
type EvalSummary struct {
	Pending         int `json:"pending"`
	Inserted        int `json:"inserted"`
	AlreadyComputed int `json:"already_computed"`
	Skipped         int `json:"skipped"`
}

// Evaluator computes T+3/T+7 returns of past executions against the benchmark
// ⭐ SSOT: 성과 평가는 여기서만
type Evaluator struct {
	store    Store
	calendar contracts.MarketCalendar
	prices   contracts.PriceSource
	cfg      Config
	observer contracts.Observer
	logger   *logger.Logger
}

// New creates a new evaluator
func New(store Store, calendar contracts.MarketCalendar, prices contracts.PriceSource, cfg Config, log *logger.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		calendar: calendar,
		prices:   prices,
		cfg:      cfg.withDefaults(),
		logger:   log.WithComponent("evaluator"),
	}
}

// WithObserver publishes an outcome_recorded event for every inserted outcome
func (e *Evaluator) WithObserver(obs contracts.Observer) *Evaluator {
	e.observer = obs
	return e
}

// Run evaluates executions older than the buffer that have no outcome, oldest first.
// Per-execution failures are logged and skipped; only the pending query can fail the run.
func (e *Evaluator) Run(ctx context.Context, now time.Time) (EvalSummary, error) {
	var summary EvalSummary

	pending, err := e.store.PendingExecutions(ctx, now.Add(-e.cfg.Buffer), e.cfg.BatchLimit)
	if err != nil {
		return summary, fmt.Errorf("load pending executions: %w", err)
	}
	summary.Pending = len(pending)

	if len(pending) == 0 {
		e.logger.Info("No executions to evaluate")
		return summary, nil
	}

	for i := range pending {
		exec := pending[i]
		log := e.logger.WithFields(map[string]interface{}{
			"execution_id": exec.ID,
			"ticker":       exec.Ticker,
		})

		outcome, err := e.Evaluate(ctx, exec, now)
		if err != nil {
			summary.Skipped++
			log.WithError(err).Warn("Evaluation skipped, will retry next run")
			continue
		}

		inserted, err := e.store.InsertOutcome(ctx, outcome)
		if err != nil {
			summary.Skipped++
			log.WithError(err).Error("Failed to store outcome")
			continue
		}
		if !inserted {
			summary.AlreadyComputed++
			log.Info("Outcome already computed")
			continue
		}

		summary.Inserted++
		log.WithFields(map[string]interface{}{
			"entry_session": outcome.EntrySessionDate.Format("2006-01-02"),
			"t3_return":     outcome.T3Return,
			"t7_return":     outcome.T7Return,
			"spy_t3_return": outcome.SPYT3Return,
			"spy_t7_return": outcome.SPYT7Return,
		}).Info("Outcome recorded")

		if e.observer != nil {
			e.observer.OnEvent(contracts.Event{
				Type:  contracts.EventOutcomeRecorded,
				Stage: contracts.StageEvaluate,
				Time:  now,
				Data: map[string]any{
					"execution_id": outcome.ExecutionID,
					"ticker":       outcome.Ticker,
					"excess_t7":    outcome.ExcessT7(),
				},
			})
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"pending":          summary.Pending,
		"inserted":         summary.Inserted,
		"already_computed": summary.AlreadyComputed,
		"skipped":          summary.Skipped,
	}).Info("Evaluation finished")

	return summary, nil
}

// Evaluate computes the outcome of one execution
func (e *Evaluator) Evaluate(ctx context.Context, exec contracts.Execution, now time.Time) (*contracts.Outcome, error) {
	entryDate := marketcal.SessionDate(exec.CreatedAt)
	from := entryDate.AddDate(0, 0, -e.cfg.LookbackDays)
	to := entryDate.AddDate(0, 0, e.cfg.LookaheadDays)

	var sessions []time.Time
	err := e.withTimeout(ctx, func(ctx context.Context) error {
		s, err := e.calendar.Sessions(ctx, from, to)
		sessions = s
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	entry, t3, t7, err := locateSessions(sessions, entryDate)
	if err != nil {
		return nil, err
	}

	tickerCloses, err := e.closes(ctx, exec.Ticker, sessions[0], t7)
	if err != nil {
		return nil, err
	}
	benchCloses, err := e.closes(ctx, e.cfg.Benchmark, sessions[0], t7)
	if err != nil {
		return nil, err
	}

	entryClose, t3Close, t7Close, err := pick(tickerCloses, exec.Ticker, entry, t3, t7)
	if err != nil {
		return nil, err
	}
	benchEntry, benchT3, benchT7, err := pick(benchCloses, e.cfg.Benchmark, entry, t3, t7)
	if err != nil {
		return nil, err
	}

	return &contracts.Outcome{
		ExecutionID:      exec.ID,
		Ticker:           exec.Ticker,
		EntrySessionDate: entry,
		EntryClose:       entryClose,
		T3Close:          t3Close,
		T7Close:          t7Close,
		T3Return:         SimpleReturn(entryClose, t3Close),
		T7Return:         SimpleReturn(entryClose, t7Close),
		SPYT3Return:      SimpleReturn(benchEntry, benchT3),
		SPYT7Return:      SimpleReturn(benchEntry, benchT7),
		ComputedAt:       now.UTC(),
	}, nil
}

// SimpleReturn is b/a - 1
func SimpleReturn(a, b float64) float64 {
	return b/a - 1
}

// locateSessions advances entryDate to the first session on or after it and
// returns it with the sessions three and seven positions later
func locateSessions(sessions []time.Time, entryDate time.Time) (entry, t3, t7 time.Time, err error) {
	idx := -1
	for i, s := range sessions {
		if !s.Before(entryDate) {
			idx = i
			break
		}
	}
	if idx < 0 || idx+LongHorizon >= len(sessions) {
		return entry, t3, t7, fmt.Errorf("%w: entry=%s sessions=%d", ErrCalendarTooShort, entryDate.Format("2006-01-02"), len(sessions))
	}
	return sessions[idx], sessions[idx+ShortHorizon], sessions[idx+LongHorizon], nil
}

func (e *Evaluator) closes(ctx context.Context, ticker string, from, to time.Time) (map[string]float64, error) {
	var out map[string]float64
	err := e.withTimeout(ctx, func(ctx context.Context) error {
		c, err := e.prices.DailyCloses(ctx, ticker, from, to)
		out = c
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load closes %s: %w", ticker, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no series for %s", ErrMissingPrice, ticker)
	}
	return out, nil
}

func pick(closes map[string]float64, ticker string, sessions ...time.Time) (float64, float64, float64, error) {
	var vals [3]float64
	for i, s := range sessions {
		v, ok := closes[contracts.SessionKey(s)]
		if !ok || !(v > 0) {
			return 0, 0, 0, fmt.Errorf("%w: %s on %s", ErrMissingPrice, ticker, contracts.SessionKey(s))
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

func (e *Evaluator) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return fn(callCtx)
}
