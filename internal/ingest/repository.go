package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
)

// Repository stores raw items in raw_news
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new raw news repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertNew inserts the batch in one statement, skipping known URLs
func (r *Repository) InsertNew(ctx context.Context, items []contracts.RawItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	sources := make([]string, len(items))
	titles := make([]string, len(items))
	urls := make([]string, len(items))
	fetched := make([]time.Time, len(items))
	for i, item := range items {
		if item.URL == "" {
			return nil, fmt.Errorf("%w: raw item without url", contracts.ErrInvalidInput)
		}
		sources[i] = item.Source
		titles[i] = item.Title
		urls[i] = item.URL
		fetched[i] = item.FetchedAt
	}

	query := `
		INSERT INTO raw_news (source, raw_title, url, fetched_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::timestamptz[])
		ON CONFLICT (url) DO NOTHING
		RETURNING url
	`

	rows, err := r.pool.Query(ctx, query, sources, titles, urls, fetched)
	if err != nil {
		return nil, fmt.Errorf("failed to insert raw news: %w", err)
	}
	defer rows.Close()

	inserted := make([]string, 0, len(items))
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan inserted url: %w", err)
		}
		inserted = append(inserted, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to insert raw news: %w", err)
	}

	return inserted, nil
}

// Count returns the number of stored raw items
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_news`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count raw news: %w", err)
	}
	return n, nil
}
