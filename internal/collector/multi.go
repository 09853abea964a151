package collector

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/ingest"
	"github.com/wonny/newsquant/pkg/httputil"
	"github.com/wonny/newsquant/pkg/logger"
)

// MultiCollector runs several collectors concurrently and merges their items
// in collector order with in-batch duplicates removed
type MultiCollector struct {
	collectors []contracts.Collector
	logger     *logger.Logger
}

// NewMultiCollector creates a new merged collector
func NewMultiCollector(log *logger.Logger, collectors ...contracts.Collector) *MultiCollector {
	return &MultiCollector{
		collectors: collectors,
		logger:     log.WithComponent("collector"),
	}
}

// NewFromSources builds RSS and Reddit collectors for every configured source
func NewFromSources(src Sources, client *httputil.Client, userAgent string, log *logger.Logger) *MultiCollector {
	collectors := make([]contracts.Collector, 0, len(src.RSS)+len(src.Subreddits))
	for _, feed := range src.RSS {
		collectors = append(collectors, NewRSSCollector(feed, client, userAgent, log))
	}
	for _, sub := range src.Subreddits {
		collectors = append(collectors, NewRedditCollector("", sub, src.RedditLimit, client, userAgent, log))
	}
	return NewMultiCollector(log, collectors...)
}

// Name returns "multi"
func (m *MultiCollector) Name() string {
	return "multi"
}

// Len returns the number of collectors
func (m *MultiCollector) Len() int {
	return len(m.collectors)
}

// Collect never fails: a collector that panics contributes nothing
func (m *MultiCollector) Collect(ctx context.Context) []contracts.RawItem {
	results := make([][]contracts.RawItem, len(m.collectors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range m.collectors {
		i, c := i, c
		g.Go(func() error {
			results[i] = m.collectOne(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]contracts.RawItem, 0)
	for i, items := range results {
		m.logger.WithFields(map[string]interface{}{
			"source": m.collectors[i].Name(),
			"count":  len(items),
		}).Info("Collected")
		merged = append(merged, items...)
	}

	return ingest.DedupBatch(merged)
}

func (m *MultiCollector) collectOne(ctx context.Context, c contracts.Collector) (items []contracts.RawItem) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithError(fmt.Errorf("panic: %v", r)).WithField("source", c.Name()).Error("Collector panicked")
			items = nil
		}
	}()
	return c.Collect(ctx)
}
