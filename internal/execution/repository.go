package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/database"
)

// dailyCapLockKey serializes cap check and audit insert across processes
const dailyCapLockKey int64 = 0x6e65_7773_6361_70 // "newscap"

// Repository handles trade_execution persistence.
// Rows are append-only: there is no update or delete.
// ⭐ SSOT: Execution 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new execution repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const executionColumns = `id, ticker, amount_usd, price, qty, dry_run, order_status, error, created_at`

// CountSince counts audit rows created at or after since
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int, error) {
	return countSince(ctx, r.pool, since)
}

func countSince(ctx context.Context, q queryRower, since time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM trade_execution WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return n, nil
}

// WithinDailyCap holds an advisory transaction lock, re-reads today's count and,
// if below maxDaily, runs fn. The row fn appends commits with the lock released.
// When the transaction fails after fn appended a row, the row is written again
// outside the transaction so the attempt is never left unaudited.
func (r *Repository) WithinDailyCap(
	ctx context.Context,
	dayStart time.Time,
	maxDaily int,
	fn func(appendRow func(context.Context, *contracts.Execution) error) error,
) error {
	var pending *contracts.Execution

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, dailyCapLockKey); err != nil {
			return fmt.Errorf("failed to acquire daily cap lock: %w", err)
		}

		count, err := countSince(ctx, tx, dayStart)
		if err != nil {
			return err
		}
		if count >= maxDaily {
			return fmt.Errorf("%w: %d of %d", contracts.ErrDailyCapReached, count, maxDaily)
		}

		return fn(func(ctx context.Context, e *contracts.Execution) error {
			pending = e
			return insertExecution(ctx, tx, e)
		})
	})
	if err == nil || pending == nil || errors.Is(err, contracts.ErrDailyCapReached) {
		return err
	}

	pending.ID = 0
	if ferr := insertExecution(context.WithoutCancel(ctx), r.pool, pending); ferr != nil {
		return errors.Join(err, fmt.Errorf("fallback audit insert: %w", ferr))
	}
	return nil
}

// Insert appends one audit row without the cap lock
func (r *Repository) Insert(ctx context.Context, e *contracts.Execution) error {
	return insertExecution(ctx, r.pool, e)
}

func insertExecution(ctx context.Context, q queryRower, e *contracts.Execution) error {
	query := `
		INSERT INTO trade_execution (ticker, amount_usd, price, qty, dry_run, order_status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		e.Ticker, e.AmountUSD, e.Price, e.Qty, e.DryRun, e.OrderStatus, e.Error, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// GetByID retrieves one execution
func (r *Repository) GetByID(ctx context.Context, id int64) (*contracts.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM trade_execution WHERE id = $1`

	e, err := scanExecution(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("execution %d: %w", id, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return e, nil
}

// ListSince returns executions created at or after since, newest first
func (r *Repository) ListSince(ctx context.Context, since time.Time, limit int) ([]contracts.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM trade_execution
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.Execution, 0)
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return out, nil
}

// scanExecution scans one row selected with executionColumns
func scanExecution(row pgx.Row) (*contracts.Execution, error) {
	var e contracts.Execution
	err := row.Scan(&e.ID, &e.Ticker, &e.AmountUSD, &e.Price, &e.Qty, &e.DryRun, &e.OrderStatus, &e.Error, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
