package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/database"
)

// Repository stores signals in sentiment_signal
// ⭐ SSOT: signal 저장/Top1 조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new signal repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const signalColumns = `id, ticker, score, risk_tags, ai_summary, created_at`

// InsertSignals appends every signal, including ticker-less ones, in one transaction
func (r *Repository) InsertSignals(ctx context.Context, signals []contracts.Signal, createdAt time.Time) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO sentiment_signal (ticker, score, risk_tags, ai_summary, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
	`

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range signals {
			tags, err := marshalTags(s.RiskTags)
			if err != nil {
				return err
			}
			batch.Queue(query, s.Ticker, s.Sentiment, tags, s.Summary, createdAt)
		}

		results := tx.SendBatch(ctx, batch)
		for range signals {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert signal: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}

	return len(signals), nil
}

// SelectTop1 returns today's best candidate or nil when none qualifies.
// Ties on score go to the earliest created_at, then the lowest id.
func (r *Repository) SelectTop1(ctx context.Context, dayStart time.Time) (*contracts.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM sentiment_signal
		WHERE created_at >= $1
		  AND ticker IS NOT NULL
		  AND risk_tags = '[]'::jsonb
		ORDER BY score DESC, created_at ASC, id ASC
		LIMIT 1
	`

	s, err := scanSignal(r.pool.QueryRow(ctx, query, dayStart))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select top1 signal: %w", err)
	}
	return s, nil
}

// ListSince returns signals created at or after since, best first
func (r *Repository) ListSince(ctx context.Context, since time.Time, limit int) ([]contracts.Signal, error) {
	query := `
		SELECT ` + signalColumns + `
		FROM sentiment_signal
		WHERE created_at >= $1
		ORDER BY score DESC, created_at ASC, id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Signal, 0)
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signals: %w", err)
	}
	return out, nil
}

func scanSignal(row pgx.Row) (*contracts.Signal, error) {
	var (
		s    contracts.Signal
		tags []byte
	)
	if err := row.Scan(&s.ID, &s.Ticker, &s.Sentiment, &tags, &s.Summary, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.RiskTags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &s.RiskTags); err != nil {
			return nil, fmt.Errorf("decode risk_tags: %w", err)
		}
	}
	return &s, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode risk_tags: %w", err)
	}
	return string(b), nil
}
