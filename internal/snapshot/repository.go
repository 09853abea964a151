package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
)

// Repository handles account_snapshot and position_snapshot persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new snapshot repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertAccount stores one account snapshot
func (r *Repository) InsertAccount(ctx context.Context, a *contracts.AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshot (net_liquidation, total_cash, buying_power, init_margin_req, maint_margin_req, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		a.NetLiquidation, a.TotalCash, a.BuyingPower, a.InitMarginReq, a.MaintMarginReq, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert account snapshot: %w", err)
	}
	return nil
}

// InsertPositions stores a position set with COPY
func (r *Repository) InsertPositions(ctx context.Context, positions []contracts.PositionSnapshot) error {
	if len(positions) == 0 {
		return nil
	}

	rows := make([][]any, len(positions))
	for i, p := range positions {
		rows[i] = []any{p.Ticker, p.Position, p.AvgCost, p.MarketPrice, p.MarketValue, p.UnrealizedPnL, p.CreatedAt}
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"position_snapshot"},
		[]string{"ticker", "position", "avg_cost", "market_price", "market_value", "unrealized_pnl", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy position snapshots: %w", err)
	}
	return nil
}

// LatestAccount returns the newest account snapshot, nil when none exists
func (r *Repository) LatestAccount(ctx context.Context) (*contracts.AccountSnapshot, error) {
	query := `
		SELECT id, net_liquidation, total_cash, buying_power, init_margin_req, maint_margin_req, created_at
		FROM account_snapshot
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var a contracts.AccountSnapshot
	err := r.pool.QueryRow(ctx, query).Scan(
		&a.ID, &a.NetLiquidation, &a.TotalCash, &a.BuyingPower, &a.InitMarginReq, &a.MaintMarginReq, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest account snapshot: %w", err)
	}
	return &a, nil
}

// PositionsSince returns position rows created at or after since, newest first
func (r *Repository) PositionsSince(ctx context.Context, since time.Time, limit int) ([]contracts.PositionSnapshot, error) {
	query := `
		SELECT id, ticker, position, avg_cost, market_price, market_value, unrealized_pnl, created_at
		FROM position_snapshot
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query position snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.PositionSnapshot, 0)
	for rows.Next() {
		var p contracts.PositionSnapshot
		if err := rows.Scan(&p.ID, &p.Ticker, &p.Position, &p.AvgCost, &p.MarketPrice, &p.MarketValue, &p.UnrealizedPnL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position snapshot: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate position snapshots: %w", err)
	}
	return out, nil
}
