package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

func outcome(day int, t7, spyT7 float64) contracts.Outcome {
	return contracts.Outcome{
		Ticker:           "NVDA",
		EntrySessionDate: time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
		T3Return:         t7 / 2,
		T7Return:         t7,
		SPYT3Return:      spyT7 / 2,
		SPYT7Return:      spyT7,
	}
}

func TestSummarize(t *testing.T) {
	// Given out of entry order; the path is 0.10, -0.05, 0.02
	r := Summarize([]contracts.Outcome{
		outcome(4, 0.02, 0.03),
		outcome(2, 0.10, 0.02),
		outcome(3, -0.05, 0.01),
	})

	assert.Equal(t, 3, r.Trades)
	assert.InDelta(t, 0.07/3, r.MeanT7, 1e-9)
	assert.InDelta(t, 0.035/3, r.MeanT3, 1e-9)
	assert.InDelta(t, 0.01/3, r.MeanExcessT7, 1e-9)
	assert.InDelta(t, 0.005/3, r.MeanExcessT3, 1e-9)
	assert.InDelta(t, 1.0/3, r.BeatRateT7, 1e-9)

	assert.InDelta(t, 1.10*0.95*1.02-1, r.CumulativeT7, 1e-9)
	assert.InDelta(t, -0.05, r.MaxDrawdown, 1e-9)
	assert.InDelta(t, 2.0/3, r.WinRate, 1e-9)
	assert.InDelta(t, 0.06, r.AvgWin, 1e-9)
	assert.InDelta(t, -0.05, r.AvgLoss, 1e-9)
	assert.InDelta(t, 2.4, r.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.075056, r.StdDevT7, 1e-6)
}

func TestSummarizeEdgeCases(t *testing.T) {
	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Trades)
	assert.Zero(t, empty.MeanExcessT7)

	single := Summarize([]contracts.Outcome{outcome(2, 0.03, 0.01)})
	assert.Zero(t, single.StdDevT7, "one sample has no spread")
	assert.Zero(t, single.ProfitFactor, "no losses")
	assert.Zero(t, single.MaxDrawdown)
	assert.Equal(t, 1.0, single.WinRate)
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		period string
		want   *time.Time
	}{
		{"1M", ptr(time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC))},
		{"3m", ptr(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))},
		{"1Y", ptr(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))},
		{"YTD", ptr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"ALL", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := ParsePeriod(tt.period, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePeriod("2W", now)
	assert.Error(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
