package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
)

// Repository handles trade_outcome persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new outcome repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const outcomeColumns = `id, trade_execution_id, ticker, entry_session, entry_close, t3_close, t7_close,
	t3_return, t7_return, spy_t3_return, spy_t7_return, computed_at`

// PendingExecutions returns executions created at or before createdBefore
// that have no outcome yet, oldest first. Failed attempts are scored too.
func (r *Repository) PendingExecutions(ctx context.Context, createdBefore time.Time, limit int) ([]contracts.Execution, error) {
	query := `
		SELECT e.id, e.ticker, e.amount_usd, e.price, e.qty, e.dry_run, e.order_status, e.error, e.created_at
		FROM trade_execution e
		WHERE e.created_at <= $1
		  AND NOT EXISTS (SELECT 1 FROM trade_outcome o WHERE o.trade_execution_id = e.id)
		ORDER BY e.created_at ASC, e.id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending executions: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Execution, 0)
	for rows.Next() {
		var e contracts.Execution
		if err := rows.Scan(&e.ID, &e.Ticker, &e.AmountUSD, &e.Price, &e.Qty, &e.DryRun, &e.OrderStatus, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending executions: %w", err)
	}
	return out, nil
}

// InsertOutcome writes one outcome. A conflict on trade_execution_id leaves
// the existing row untouched and reports false.
func (r *Repository) InsertOutcome(ctx context.Context, o *contracts.Outcome) (bool, error) {
	query := `
		INSERT INTO trade_outcome (
			trade_execution_id, ticker, entry_session, entry_close, t3_close, t7_close,
			t3_return, t7_return, spy_t3_return, spy_t7_return, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (trade_execution_id) DO NOTHING
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		o.ExecutionID, o.Ticker, o.EntrySessionDate, o.EntryClose, o.T3Close, o.T7Close,
		o.T3Return, o.T7Return, o.SPYT3Return, o.SPYT7Return, o.ComputedAt,
	).Scan(&o.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert outcome: %w", err)
	}
	return true, nil
}

// GetByExecutionID retrieves the outcome of one execution
func (r *Repository) GetByExecutionID(ctx context.Context, executionID int64) (*contracts.Outcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcome WHERE trade_execution_id = $1`

	o, err := scanOutcome(r.pool.QueryRow(ctx, query, executionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("outcome for execution %d: %w", executionID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return o, nil
}

// ListRecent returns the latest outcomes, newest first
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]contracts.Outcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM trade_outcome
		ORDER BY computed_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Outcome, 0)
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return out, nil
}

func scanOutcome(row pgx.Row) (*contracts.Outcome, error) {
	var o contracts.Outcome
	err := row.Scan(
		&o.ID, &o.ExecutionID, &o.Ticker, &o.EntrySessionDate, &o.EntryClose, &o.T3Close, &o.T7Close,
		&o.T3Return, &o.T7Return, &o.SPYT3Return, &o.SPYT7Return, &o.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
