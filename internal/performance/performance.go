package performance

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
)

// Report summarizes evaluated trades. Returns are simple fractions (0.01 = 1%).
// ⭐ SSOT: 성과 집계는 여기서만
type Report struct {
	Period string     `json:"period"`
	Since  *time.Time `json:"since,omitempty"`
	Trades int        `json:"trades"`

	// 수익률
	MeanT3       float64 `json:"mean_t3"`
	MeanT7       float64 `json:"mean_t7"`
	CumulativeT7 float64 `json:"cumulative_t7"`

	// 벤치마크 대비
	MeanExcessT3 float64 `json:"mean_excess_t3"`
	MeanExcessT7 float64 `json:"mean_excess_t7"`
	BeatRateT7   float64 `json:"beat_rate_t7"`

	// 트레이딩 지표
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	StdDevT7     float64 `json:"stddev_t7"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

// Periods accepted by ParsePeriod
var Periods = []string{"1M", "3M", "6M", "1Y", "YTD", "ALL"}

// ParsePeriod returns the start of a reporting period ending at now; nil means no lower bound
func ParsePeriod(period string, now time.Time) (*time.Time, error) {
	now = now.UTC()
	var since time.Time
	switch strings.ToUpper(period) {
	case "", "ALL":
		return nil, nil
	case "1M":
		since = now.AddDate(0, -1, 0)
	case "3M":
		since = now.AddDate(0, -3, 0)
	case "6M":
		since = now.AddDate(0, -6, 0)
	case "1Y":
		since = now.AddDate(-1, 0, 0)
	case "YTD":
		since = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return nil, fmt.Errorf("invalid period %q (want one of %s)", period, strings.Join(Periods, ", "))
	}
	return &since, nil
}

// Summarize computes the report. Trades are ordered by entry session for the drawdown path.
func Summarize(outcomes []contracts.Outcome) Report {
	r := Report{Trades: len(outcomes)}
	if len(outcomes) == 0 {
		return r
	}

	ordered := make([]contracts.Outcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EntrySessionDate.Before(ordered[j].EntrySessionDate)
	})

	t7 := make([]float64, len(ordered))
	var sumT3, sumT7, sumExT3, sumExT7 float64
	beats := 0
	for i, o := range ordered {
		t7[i] = o.T7Return
		sumT3 += o.T3Return
		sumT7 += o.T7Return
		sumExT3 += o.ExcessT3()
		sumExT7 += o.ExcessT7()
		if o.ExcessT7() > 0 {
			beats++
		}
	}

	n := float64(len(ordered))
	r.MeanT3 = sumT3 / n
	r.MeanT7 = sumT7 / n
	r.MeanExcessT3 = sumExT3 / n
	r.MeanExcessT7 = sumExT7 / n
	r.BeatRateT7 = float64(beats) / n

	r.CumulativeT7 = cumulativeReturn(t7)
	r.StdDevT7 = stdDev(t7)
	r.MaxDrawdown = maxDrawdown(t7)
	r.WinRate = winRate(t7)
	r.AvgWin, r.AvgLoss = avgWinLoss(t7)
	r.ProfitFactor = profitFactor(t7)
	return r
}

// cumulativeReturn compounds the returns in order
func cumulativeReturn(returns []float64) float64 {
	cum := 1.0
	for _, r := range returns {
		cum *= 1.0 + r
	}
	return cum - 1.0
}

// stdDev is the sample standard deviation
func stdDev(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

// maxDrawdown is the deepest peak-to-trough fall of the compounded path (<= 0)
func maxDrawdown(returns []float64) float64 {
	value, peak, maxDD := 1.0, 1.0, 0.0
	for _, r := range returns {
		value *= 1.0 + r
		if value > peak {
			peak = value
		}
		if dd := (value - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func winRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

func avgWinLoss(returns []float64) (float64, float64) {
	var sumWin, sumLoss float64
	var countWin, countLoss int
	for _, r := range returns {
		switch {
		case r > 0:
			sumWin += r
			countWin++
		case r < 0:
			sumLoss += r
			countLoss++
		}
	}

	avgWin, avgLoss := 0.0, 0.0
	if countWin > 0 {
		avgWin = sumWin / float64(countWin)
	}
	if countLoss > 0 {
		avgLoss = sumLoss / float64(countLoss)
	}
	return avgWin, avgLoss
}

// profitFactor is gross gain over gross loss, 0 when nothing was lost
func profitFactor(returns []float64) float64 {
	var gain, loss float64
	for _, r := range returns {
		if r > 0 {
			gain += r
		} else {
			loss -= r
		}
	}
	if loss == 0 {
		return 0
	}
	return gain / loss
}
