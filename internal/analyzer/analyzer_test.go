package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/pkg/logger"
)

// scriptedClient answers each batch from a function of its first title
type scriptedClient struct {
	mu     sync.Mutex
	calls  map[string]int
	answer func(titles []string, call int) ([]map[string]any, error)
}

func newScriptedClient(answer func(titles []string, call int) ([]map[string]any, error)) *scriptedClient {
	return &scriptedClient{calls: map[string]int{}, answer: answer}
}

func (c *scriptedClient) AnalyzeBatch(ctx context.Context, titles []string) ([]map[string]any, error) {
	c.mu.Lock()
	c.calls[titles[0]]++
	call := c.calls[titles[0]]
	c.mu.Unlock()
	return c.answer(titles, call)
}

func (c *scriptedClient) callsFor(first string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[first]
}

func echo(titles []string) []map[string]any {
	out := make([]map[string]any, len(titles))
	for i, title := range titles {
		out[i] = map[string]any{"ticker": "AAA", "sentiment": 0.1, "summary": title, "risk_tags": []any{}}
	}
	return out
}

func titlesN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%02d", i)
	}
	return out
}

func testConfig() Config {
	return Config{
		BatchSize:      5,
		Timeout:        time.Second,
		MaxAttempts:    3,
		Concurrency:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestSplitBatches(t *testing.T) {
	batches := splitBatches(titlesN(12), 5)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 5)
	assert.Len(t, batches[1], 5)
	assert.Len(t, batches[2], 2)
	assert.Nil(t, splitBatches(nil, 5))
}

func TestConfigDefaultsClampBatchSize(t *testing.T) {
	assert.Equal(t, MaxBatchSize, Config{BatchSize: 500}.withDefaults().BatchSize)
	assert.Equal(t, DefaultBatchSize, Config{}.withDefaults().BatchSize)
	assert.Equal(t, 1, Config{}.withDefaults().Concurrency)
}

func TestAnalyzeTitlesAllBatchesSucceed(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		return echo(titles), nil
	})
	a := New(client, testConfig(), logger.NewNop())

	signals := a.AnalyzeTitles(context.Background(), titlesN(12))

	require.Len(t, signals, 12)
	for i, s := range signals {
		assert.Equal(t, fmt.Sprintf("t%02d", i), s.Summary)
	}
}

func TestLengthMismatchSkipsOnlyThatBatch(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		if titles[0] == "t05" {
			return echo(titles)[:3], nil
		}
		return echo(titles), nil
	})
	a := New(client, testConfig(), logger.NewNop())

	results := a.AnalyzeBatches(context.Background(), titlesN(12))

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())

	assert.ErrorIs(t, results[1].Failure, ErrLengthMismatch)
	assert.Equal(t, 1, results[1].Failure.Attempts)
	assert.Equal(t, 1, client.callsFor("t05"))
	assert.Empty(t, results[1].Signals)

	// never partial length
	for _, r := range results {
		if len(r.Signals) > 0 {
			assert.Equal(t, r.Size, len(r.Signals))
		}
	}

	signals := a.AnalyzeTitles(context.Background(), titlesN(12))
	assert.Len(t, signals, 7)
}

func TestMalformedElementFailsBatch(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		out := echo(titles)
		out[1] = nil
		return out, nil
	})
	a := New(client, testConfig(), logger.NewNop())

	results := a.AnalyzeBatches(context.Background(), titlesN(3))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Failure, ErrMalformedResponse)
	assert.Equal(t, "malformed", FailureReason(results[0].Failure))
}

func TestUnparseableResponseIsNotRetried(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedResponse)
	})
	a := New(client, testConfig(), logger.NewNop())

	results := a.AnalyzeBatches(context.Background(), titlesN(2))

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Failure)
	assert.ErrorIs(t, results[0].Failure, ErrMalformedResponse)
	assert.Equal(t, 1, results[0].Failure.Attempts)
	assert.Equal(t, 1, client.callsFor("t00"))
}

func TestTransientErrorIsRetried(t *testing.T) {
	client := newScriptedClient(func(titles []string, call int) ([]map[string]any, error) {
		if call < 3 {
			return nil, errors.New("503 service unavailable")
		}
		return echo(titles), nil
	})
	a := New(client, testConfig(), logger.NewNop())

	results := a.AnalyzeBatches(context.Background(), titlesN(2))

	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, 3, client.callsFor("t00"))
}

func TestRetriesAreBounded(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		return nil, errors.New("connection reset")
	})
	a := New(client, testConfig(), logger.NewNop())

	results := a.AnalyzeBatches(context.Background(), titlesN(2))

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Failure)
	assert.Equal(t, 3, results[0].Failure.Attempts)
	assert.Equal(t, 3, client.callsFor("t00"))
	assert.Equal(t, "call_failed", FailureReason(results[0].Failure))
}

func TestPerCallTimeout(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		time.Sleep(30 * time.Millisecond)
		return echo(titles), nil
	})
	slow := &deadlineClient{inner: client}
	cfg := testConfig()
	cfg.Timeout = 5 * time.Millisecond
	cfg.MaxAttempts = 1
	a := New(slow, cfg, logger.NewNop())

	results := a.AnalyzeBatches(context.Background(), titlesN(2))

	require.NotNil(t, results[0].Failure)
	assert.Equal(t, "timeout", FailureReason(results[0].Failure))
}

// deadlineClient returns the context error when the inner call outlives ctx
type deadlineClient struct {
	inner *scriptedClient
}

func (d *deadlineClient) AnalyzeBatch(ctx context.Context, titles []string) ([]map[string]any, error) {
	out, err := d.inner.AnalyzeBatch(ctx, titles)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, err
}

func TestConcurrentBatchesKeepOrder(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		if titles[0] == "t00" {
			time.Sleep(20 * time.Millisecond)
		}
		return echo(titles), nil
	})
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 4
	a := New(client, cfg, logger.NewNop())

	signals := a.AnalyzeTitles(context.Background(), titlesN(8))

	require.Len(t, signals, 8)
	for i, s := range signals {
		assert.Equal(t, fmt.Sprintf("t%02d", i), s.Summary)
	}
}

func TestEmptyInput(t *testing.T) {
	client := newScriptedClient(func(titles []string, _ int) ([]map[string]any, error) {
		t.Fatal("client must not be called")
		return nil, nil
	})
	a := New(client, testConfig(), logger.NewNop())

	assert.Empty(t, a.AnalyzeTitles(context.Background(), nil))
}
