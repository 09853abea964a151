package brief

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/database"
)

// Repository handles news_alert persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alert repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertAlerts stores alerts in one transaction
func (r *Repository) InsertAlerts(ctx context.Context, alerts []contracts.NewsAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range alerts {
			batch.Queue(`
				INSERT INTO news_alert (keyword, source, title, url, created_at)
				VALUES ($1, $2, $3, $4, $5)
			`, a.Keyword, a.Source, a.Title, a.URL, a.CreatedAt)
		}

		results := tx.SendBatch(ctx, batch)
		for range alerts {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert alert: %w", err)
			}
		}
		return results.Close()
	})
}

// AlertsSince returns alerts created at or after since, newest first
func (r *Repository) AlertsSince(ctx context.Context, since time.Time, limit int) ([]contracts.NewsAlert, error) {
	query := `
		SELECT id, keyword, source, title, url, created_at
		FROM news_alert
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.NewsAlert, 0)
	for rows.Next() {
		var a contracts.NewsAlert
		if err := rows.Scan(&a.ID, &a.Keyword, &a.Source, &a.Title, &a.URL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return out, nil
}
