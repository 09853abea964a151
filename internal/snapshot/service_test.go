package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/execution"
	"github.com/wonny/newsquant/internal/storage/memory"
	"github.com/wonny/newsquant/pkg/logger"
)

func ptr(v float64) *float64 { return &v }

func TestService_Take(t *testing.T) {
	broker := execution.NewMockBroker()
	broker.SetPositions([]contracts.PositionSnapshot{
		{Ticker: "NVDA", Position: 0.5, AvgCost: ptr(120), MarketPrice: ptr(130)},
		{Ticker: "AAPL", Position: 2, MarketPrice: ptr(200), MarketValue: ptr(401)},
	})
	store := memory.NewSnapshotStore()
	svc := NewService(broker, store, logger.NewNop())
	now := time.Date(2025, 6, 2, 21, 30, 0, 0, time.UTC)

	result, err := svc.Take(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{AccountSaved: true, Positions: 2}, result)

	acct, err := store.LatestAccount(context.Background())
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, now, acct.CreatedAt)
	assert.Equal(t, 100_000.0, *acct.NetLiquidation)

	positions, err := store.PositionsSince(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	byTicker := map[string]contracts.PositionSnapshot{}
	for _, p := range positions {
		byTicker[p.Ticker] = p
	}
	assert.InDelta(t, 65.0, *byTicker["NVDA"].MarketValue, 1e-9)
	assert.Equal(t, 401.0, *byTicker["AAPL"].MarketValue)
}

func TestService_AccountFailureStillRecordsPositions(t *testing.T) {
	broker := execution.NewMockBroker()
	broker.AccountErr = errors.New("account endpoint down")
	broker.SetPositions([]contracts.PositionSnapshot{{Ticker: "NVDA", Position: 1}})
	store := memory.NewSnapshotStore()

	result, err := NewService(broker, store, logger.NewNop()).Take(context.Background(), time.Now())
	assert.ErrorContains(t, err, "account endpoint down")
	assert.False(t, result.AccountSaved)
	assert.Equal(t, 1, result.Positions)

	acct, err := store.LatestAccount(context.Background())
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestService_StoreFailure(t *testing.T) {
	store := memory.NewSnapshotStore()
	store.FailWith(errors.New("db down"))

	result, err := NewService(execution.NewMockBroker(), store, logger.NewNop()).Take(context.Background(), time.Now())
	assert.Error(t, err)
	assert.Equal(t, Result{}, result)
}
