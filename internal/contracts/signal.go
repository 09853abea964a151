package contracts

import "time"

// SummaryMaxRunes bounds Signal.Summary
const SummaryMaxRunes = 60

// Signal is the normalized analysis of one headline.
// Ticker is nil when the analysis was not confident; it is never guessed.
type Signal struct {
	ID        int64     `json:"id"`
	Ticker    *string   `json:"ticker"`
	Sentiment float64   `json:"sentiment"` // [-1, 1]
	Summary   string    `json:"summary"`
	RiskTags  []string  `json:"risk_tags"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCandidate reports whether the signal may be selected for trading
func (s Signal) IsCandidate() bool {
	return s.Ticker != nil && len(s.RiskTags) == 0
}

// TickerOrEmpty returns the ticker or "" when absent
func (s Signal) TickerOrEmpty() string {
	if s.Ticker == nil {
		return ""
	}
	return *s.Ticker
}
