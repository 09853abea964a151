package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/api/handlers"
)

func TestExecutionQuery(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	yes, no := true, false

	tests := []struct {
		name     string
		filter   handlers.ExecutionFilter
		contains []string
		args     []interface{}
	}{
		{
			name:     "unfiltered",
			filter:   handlers.ExecutionFilter{},
			contains: []string{"FROM trade_execution", "ORDER BY created_at DESC, id DESC"},
			args:     nil,
		},
		{
			name:     "ticker and since",
			filter:   handlers.ExecutionFilter{Ticker: "NVDA", Since: &since, Limit: 10},
			contains: []string{"ticker = $1", "created_at >= $2", "LIMIT 10"},
			args:     []interface{}{"NVDA", since},
		},
		{
			name:     "dry run and failed",
			filter:   handlers.ExecutionFilter{DryRun: &yes, Failed: &yes},
			contains: []string{"dry_run = $1", "error IS NOT NULL"},
			args:     []interface{}{true},
		},
		{
			name:     "successful only",
			filter:   handlers.ExecutionFilter{Failed: &no},
			contains: []string{"error IS NULL"},
			args:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := executionQuery(tt.filter).ToSql()
			require.NoError(t, err)
			for _, fragment := range tt.contains {
				assert.Contains(t, query, fragment)
			}
			if tt.args == nil {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestOutcomeQuery(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	query, args, err := outcomeQuery(handlers.OutcomeFilter{Ticker: "AMD", Since: &since, Limit: 5}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "FROM trade_outcome")
	assert.Contains(t, query, "ticker = $1")
	assert.Contains(t, query, "computed_at >= $2")
	assert.Contains(t, query, "ORDER BY computed_at DESC, id DESC")
	assert.Contains(t, query, "LIMIT 5")
	assert.Equal(t, []interface{}{"AMD", since}, args)
}
