package contracts

import "time"

// RunClock pins "now" and the UTC day start once per run.
// Every component that needs "today" receives it instead of calling time.Now.
type RunClock struct {
	Now      time.Time
	DayStart time.Time
}

// NewRunClock derives the UTC day start from now
func NewRunClock(now time.Time) RunClock {
	utc := now.UTC()
	return RunClock{
		Now:      utc,
		DayStart: time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// SessionKey formats a session date as used by PriceSource maps
func SessionKey(t time.Time) string {
	return t.Format("2006-01-02")
}
