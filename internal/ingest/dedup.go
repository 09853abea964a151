package ingest

import (
	"context"
	"fmt"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// Store persists raw items keyed by URL.
// InsertNew ignores URLs that already exist and returns the URLs it inserted.
type Store interface {
	InsertNew(ctx context.Context, items []contracts.RawItem) ([]string, error)
}

// Deduplicator filters a collected batch down to items never seen before
// ⭐ SSOT: raw item dedup은 여기서만
type Deduplicator struct {
	store  Store
	logger *logger.Logger
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator(store Store, log *logger.Logger) *Deduplicator {
	return &Deduplicator{
		store:  store,
		logger: log.WithComponent("ingest"),
	}
}

// Ingest drops in-batch duplicates, persists keyed items and returns exactly the
// newly persisted ones in input order. Items without URL are never persisted.
// A storage error is returned as is: the run must not continue to analysis.
func (d *Deduplicator) Ingest(ctx context.Context, items []contracts.RawItem) ([]contracts.RawItem, error) {
	unique := DedupBatch(items)

	keyed := make([]contracts.RawItem, 0, len(unique))
	skipped := 0
	for _, item := range unique {
		if !item.HasKey() {
			skipped++
			continue
		}
		keyed = append(keyed, item)
	}
	if skipped > 0 {
		d.logger.WithField("skipped", skipped).Warn("Items without url are not persisted")
	}

	if len(keyed) == 0 {
		d.logger.WithFields(map[string]interface{}{
			"total":    len(items),
			"inserted": 0,
		}).Info("Ingestion finished")
		return []contracts.RawItem{}, nil
	}

	insertedURLs, err := d.store.InsertNew(ctx, keyed)
	if err != nil {
		return nil, fmt.Errorf("persist raw items: %w", err)
	}

	inserted := make(map[string]struct{}, len(insertedURLs))
	for _, u := range insertedURLs {
		inserted[u] = struct{}{}
	}

	fresh := make([]contracts.RawItem, 0, len(insertedURLs))
	for _, item := range keyed {
		if _, ok := inserted[item.URL]; ok {
			fresh = append(fresh, item)
		}
	}

	d.logger.WithFields(map[string]interface{}{
		"total":      len(items),
		"unique":     len(unique),
		"inserted":   len(fresh),
		"duplicates": len(keyed) - len(fresh),
	}).Info("Ingestion finished")

	return fresh, nil
}

// DedupBatch keeps the first occurrence of each URL (title when URL is empty)
func DedupBatch(items []contracts.RawItem) []contracts.RawItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]contracts.RawItem, 0, len(items))
	for _, item := range items {
		key := item.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
