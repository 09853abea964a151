package signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/testutil/pgtest"
)

func TestRepository_SelectTop1(t *testing.T) {
	pool := pgtest.New(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	clock := contracts.NewRunClock(runAt)

	n, err := repo.InsertSignals(ctx, []contracts.Signal{
		sig("TICK_A", 0.5),
		sig("TICK_B", 0.8),
		sig("TICK_C", 0.9, "fraud"),
		sig("", 0.95),
	}, clock.Now)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	top, err := repo.SelectTop1(ctx, clock.DayStart)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "TICK_B", top.TickerOrEmpty())
	assert.Equal(t, 0.8, top.Sentiment)
	assert.Empty(t, top.RiskTags)
}

func TestRepository_TieBreakAndRoundTrip(t *testing.T) {
	pool := pgtest.New(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	clock := contracts.NewRunClock(runAt)

	_, err := repo.InsertSignals(ctx, []contracts.Signal{
		sig("FIRST", 0.7),
		sig("SECOND", 0.7),
		sig("TAGGED", 0.1, "halt", "litigation"),
	}, clock.Now)
	require.NoError(t, err)

	top, err := repo.SelectTop1(ctx, clock.DayStart)
	require.NoError(t, err)
	assert.Equal(t, "FIRST", top.TickerOrEmpty())

	all, err := repo.ListSince(ctx, clock.DayStart, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"halt", "litigation"}, all[2].RiskTags)
}

func TestRepository_SelectTop1Empty(t *testing.T) {
	pool := pgtest.New(t)
	repo := NewRepository(pool)

	top, err := repo.SelectTop1(context.Background(), runAt)
	require.NoError(t, err)
	assert.Nil(t, top)
}
