package marketcal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolidays2025(t *testing.T) {
	h := Holidays(2025)

	expected := []string{
		"2025-01-01", // New Year
		"2025-01-20", // MLK
		"2025-02-17", // Presidents
		"2025-04-18", // Good Friday
		"2025-05-26", // Memorial
		"2025-06-19", // Juneteenth
		"2025-07-04", // Independence
		"2025-09-01", // Labor
		"2025-11-27", // Thanksgiving
		"2025-12-25", // Christmas
	}
	assert.Len(t, h, len(expected))
	for _, d := range expected {
		assert.Contains(t, h, d)
	}
}

func TestObservedRules(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		holiday bool
	}{
		{"july 4th 2026 on saturday observed friday", Date(2026, time.July, 3), true},
		{"christmas 2022 on sunday observed monday", Date(2022, time.December, 26), true},
		{"new year 2022 on saturday is not observed", Date(2021, time.December, 31), false},
		{"new year 2023 on sunday observed monday", Date(2023, time.January, 2), true},
		{"juneteenth before 2022 is a session", Date(2021, time.June, 18), false},
		{"good friday 2024", Date(2024, time.March, 29), true},
		{"carter mourning day", Date(2025, time.January, 9), true},
		{"ordinary tuesday", Date(2025, time.June, 3), false},
	}

	cal := NYSE{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := cal.Holiday(tt.date)
			assert.Equal(t, tt.holiday, got)
		})
	}
}

func TestSessionsSkipWeekendsAndHolidays(t *testing.T) {
	sessions, err := NYSE{}.Sessions(context.Background(), Date(2025, time.July, 1), Date(2025, time.July, 8))
	require.NoError(t, err)

	got := make([]string, len(sessions))
	for i, s := range sessions {
		got[i] = s.Format("2006-01-02")
	}
	assert.Equal(t, []string{"2025-07-01", "2025-07-02", "2025-07-03", "2025-07-07", "2025-07-08"}, got)
}

func TestSessionsInvalidRange(t *testing.T) {
	_, err := NYSE{}.Sessions(context.Background(), Date(2025, time.July, 8), Date(2025, time.July, 1))
	assert.Error(t, err)
}

func TestSessionDateUsesExchangeTimeZone(t *testing.T) {
	// 2025-06-03 02:00 UTC is still June 2nd in New York
	assert.Equal(t, Date(2025, time.June, 2), SessionDate(time.Date(2025, 6, 3, 2, 0, 0, 0, time.UTC)))
	assert.Equal(t, Date(2025, time.June, 3), SessionDate(time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC)))
}

func TestNextSession(t *testing.T) {
	cal := NYSE{}
	assert.Equal(t, Date(2025, time.July, 7), cal.NextSession(Date(2025, time.July, 4)))
	assert.Equal(t, Date(2025, time.June, 2), cal.NextSession(Date(2025, time.May, 31)))
	assert.Equal(t, Date(2025, time.June, 3), cal.NextSession(Date(2025, time.June, 3)))
}
