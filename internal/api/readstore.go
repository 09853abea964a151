package api

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/api/handlers"
	"github.com/wonny/newsquant/internal/contracts"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ReadStore answers the filtered read queries of the API
// ⭐ SSOT: API 조회 쿼리는 여기서만
type ReadStore struct {
	pool *pgxpool.Pool
}

// NewReadStore creates a new read store
func NewReadStore(pool *pgxpool.Pool) *ReadStore {
	return &ReadStore{pool: pool}
}

// executionQuery builds the filtered audit query, newest first
func executionQuery(f handlers.ExecutionFilter) sq.SelectBuilder {
	q := psql.
		Select("id", "ticker", "amount_usd", "price", "qty", "dry_run", "order_status", "error", "created_at").
		From("trade_execution").
		OrderBy("created_at DESC", "id DESC")

	if f.Ticker != "" {
		q = q.Where(sq.Eq{"ticker": f.Ticker})
	}
	if f.Since != nil {
		q = q.Where(sq.GtOrEq{"created_at": *f.Since})
	}
	if f.Until != nil {
		q = q.Where(sq.Lt{"created_at": *f.Until})
	}
	if f.DryRun != nil {
		q = q.Where(sq.Eq{"dry_run": *f.DryRun})
	}
	if f.Failed != nil {
		if *f.Failed {
			q = q.Where(sq.NotEq{"error": nil})
		} else {
			q = q.Where(sq.Eq{"error": nil})
		}
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

// outcomeQuery builds the filtered outcome query, newest first
func outcomeQuery(f handlers.OutcomeFilter) sq.SelectBuilder {
	q := psql.
		Select("id", "trade_execution_id", "ticker", "entry_session", "entry_close", "t3_close", "t7_close",
			"t3_return", "t7_return", "spy_t3_return", "spy_t7_return", "computed_at").
		From("trade_outcome").
		OrderBy("computed_at DESC", "id DESC")

	if f.Ticker != "" {
		q = q.Where(sq.Eq{"ticker": f.Ticker})
	}
	if f.Since != nil {
		q = q.Where(sq.GtOrEq{"computed_at": *f.Since})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

// Executions lists audit rows matching f
func (s *ReadStore) Executions(ctx context.Context, f handlers.ExecutionFilter) ([]contracts.Execution, error) {
	query, args, err := executionQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build execution query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Execution, 0)
	for rows.Next() {
		var e contracts.Execution
		if err := rows.Scan(&e.ID, &e.Ticker, &e.AmountUSD, &e.Price, &e.Qty, &e.DryRun,
			&e.OrderStatus, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return out, nil
}

// Outcomes lists outcomes matching f
func (s *ReadStore) Outcomes(ctx context.Context, f handlers.OutcomeFilter) ([]contracts.Outcome, error) {
	query, args, err := outcomeQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build outcome query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Outcome, 0)
	for rows.Next() {
		var o contracts.Outcome
		if err := rows.Scan(&o.ID, &o.ExecutionID, &o.Ticker, &o.EntrySessionDate, &o.EntryClose,
			&o.T3Close, &o.T7Close, &o.T3Return, &o.T7Return, &o.SPYT3Return, &o.SPYT7Return,
			&o.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return out, nil
}
