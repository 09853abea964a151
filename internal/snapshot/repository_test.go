package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/testutil/pgtest"
)

func TestRepository_Snapshots(t *testing.T) {
	pool := pgtest.New(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 21, 30, 0, 0, time.UTC)

	acct, err := repo.LatestAccount(ctx)
	require.NoError(t, err)
	assert.Nil(t, acct)

	require.NoError(t, repo.InsertAccount(ctx, &contracts.AccountSnapshot{NetLiquidation: ptr(1000), CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.InsertAccount(ctx, &contracts.AccountSnapshot{NetLiquidation: ptr(1100), TotalCash: ptr(50), CreatedAt: now}))

	acct, err = repo.LatestAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, 1100.0, *acct.NetLiquidation)
	assert.Nil(t, acct.BuyingPower)

	require.NoError(t, repo.InsertPositions(ctx, []contracts.PositionSnapshot{
		{Ticker: "NVDA", Position: 0.5, MarketPrice: ptr(130), CreatedAt: now},
		{Ticker: "AAPL", Position: 2, CreatedAt: now},
	}))
	require.NoError(t, repo.InsertPositions(ctx, nil))

	positions, err := repo.PositionsSince(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}
