package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/config"
	"github.com/wonny/newsquant/pkg/logger"
)

// Batch size bounds
const (
	DefaultBatchSize = 15
	MinBatchSize     = 1
	MaxBatchSize     = 50
)

// Config controls batching, retry and timeouts
type Config struct {
	BatchSize      int
	Timeout        time.Duration // per call
	MaxAttempts    int
	Concurrency    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ConfigFrom maps application config to analyzer config
func ConfigFrom(cfg config.AnalysisConfig) Config {
	return Config{
		BatchSize:      cfg.BatchSize,
		Timeout:        cfg.Timeout,
		MaxAttempts:    cfg.MaxAttempts,
		Concurrency:    cfg.Concurrency,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	c.BatchSize = max(MinBatchSize, min(MaxBatchSize, c.BatchSize))
	if c.Timeout <= 0 {
		c.Timeout = 25 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// Analyzer turns titles into normalized signals, isolating failures per batch
// ⭐ SSOT: 분석 응답 검증/정규화는 여기서만
type Analyzer struct {
	client contracts.AnalysisClient
	cfg    Config
	logger *logger.Logger
}

// New creates a new analyzer
func New(client contracts.AnalysisClient, cfg Config, log *logger.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: log.WithComponent("analyzer"),
	}
}

// AnalyzeTitles returns the signals of every batch that parsed, in input order.
// Failed batches contribute nothing, so the output may be shorter than titles.
func (a *Analyzer) AnalyzeTitles(ctx context.Context, titles []string) []contracts.Signal {
	results := a.AnalyzeBatches(ctx, titles)
	signals, failures := Flatten(results)

	failed := 0
	for _, n := range failures {
		failed += n
	}
	a.logger.WithFields(map[string]interface{}{
		"titles":         len(titles),
		"batches":        len(results),
		"failed_batches": failed,
		"signals":        len(signals),
	}).Info("Analysis finished")

	return signals
}

// AnalyzeBatches runs every batch and returns one result per batch, ordered by index
func (a *Analyzer) AnalyzeBatches(ctx context.Context, titles []string) []BatchResult {
	batches := splitBatches(titles, a.cfg.BatchSize)
	results := make([]BatchResult, len(batches))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			results[i] = a.runBatch(ctx, i, batch)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runBatch calls the client with exponential backoff. Response validation
// failures are permanent: the batch is skipped without further attempts.
func (a *Analyzer) runBatch(ctx context.Context, index int, titles []string) BatchResult {
	result := BatchResult{Index: index, Size: len(titles)}
	attempts := 0

	var signals []contracts.Signal
	op := func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		raw, err := a.client.AnalyzeBatch(callCtx, titles)
		if errors.Is(err, ErrMalformedResponse) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		parsed, err := parseBatch(titles, raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		signals = parsed
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.cfg.InitialBackoff
	policy.MaxInterval = a.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		a.logger.WithFields(map[string]interface{}{
			"batch":   index,
			"attempt": attempts,
			"wait":    wait.String(),
		}).WithError(err).Warn("Analysis call failed, retrying")
	}

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(a.cfg.MaxAttempts-1)), ctx),
		notify,
	)
	if err != nil {
		result.Failure = &BatchFailure{Index: index, Size: len(titles), Attempts: attempts, Err: err}
		a.logger.WithFields(map[string]interface{}{
			"batch":    index,
			"size":     len(titles),
			"attempts": attempts,
			"reason":   FailureReason(err),
		}).WithError(err).Warn("Batch skipped")
		return result
	}

	result.Signals = signals
	return result
}

// FailureReason classifies a batch failure for logs and metrics
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "call_failed"
	}
}
