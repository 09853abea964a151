// Package marketcal is an offline NYSE trading calendar.
package marketcal

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata" // America/New_York on hosts without zoneinfo
)

// NewYork is the exchange time zone
var NewYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("marketcal: load %s: %v", name, err))
	}
	return loc
}

// specialClosures are unscheduled full-day closures
var specialClosures = map[string]string{
	"2012-10-29": "Hurricane Sandy",
	"2012-10-30": "Hurricane Sandy",
	"2018-12-05": "National Day of Mourning (George H.W. Bush)",
	"2025-01-09": "National Day of Mourning (Jimmy Carter)",
}

// NYSE implements contracts.MarketCalendar from the published holiday rules.
// Session dates are returned as midnight UTC of the exchange-local date.
type NYSE struct{}

// Date normalizes y-m-d to the representation used for session dates
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SessionDate returns the exchange-local calendar date of t
func SessionDate(t time.Time) time.Time {
	local := t.In(NewYork)
	return Date(local.Year(), local.Month(), local.Day())
}

// Sessions returns every trading session in [from, to], ordered
func (c NYSE) Sessions(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := Date(from.Year(), from.Month(), from.Day())
	end := Date(to.Year(), to.Month(), to.Day())
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range %s..%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsSession(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// IsSession reports whether the exchange is open on d's calendar date
func (c NYSE) IsSession(d time.Time) bool {
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.Holiday(d)
	return !holiday
}

// Holiday returns the holiday name when d is a full-day closure
func (c NYSE) Holiday(d time.Time) (string, bool) {
	key := d.Format("2006-01-02")
	if name, ok := specialClosures[key]; ok {
		return name, true
	}
	name, ok := Holidays(d.Year())[key]
	return name, ok
}

// NextSession returns d when it is a session, otherwise the next one
func (c NYSE) NextSession(d time.Time) time.Time {
	d = Date(d.Year(), d.Month(), d.Day())
	for !c.IsSession(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// Holidays returns the regular observed holidays of a year keyed by date
func Holidays(year int) map[string]string {
	h := make(map[string]string, 10)
	add := func(d time.Time, name string) {
		if d.Year() == year {
			h[d.Format("2006-01-02")] = name
		}
	}

	// New Year's Day on a Saturday is not observed on the preceding Friday
	newYear := Date(year, time.January, 1)
	switch newYear.Weekday() {
	case time.Sunday:
		add(newYear.AddDate(0, 0, 1), "New Year's Day")
	case time.Saturday:
	default:
		add(newYear, "New Year's Day")
	}

	add(nthWeekday(year, time.January, time.Monday, 3), "Martin Luther King Jr. Day")
	add(nthWeekday(year, time.February, time.Monday, 3), "Washington's Birthday")
	add(easter(year).AddDate(0, 0, -2), "Good Friday")
	add(lastWeekday(year, time.May, time.Monday), "Memorial Day")
	if year >= 2022 {
		add(observed(Date(year, time.June, 19)), "Juneteenth")
	}
	add(observed(Date(year, time.July, 4)), "Independence Day")
	add(nthWeekday(year, time.September, time.Monday, 1), "Labor Day")
	add(nthWeekday(year, time.November, time.Thursday, 4), "Thanksgiving Day")
	add(observed(Date(year, time.December, 25)), "Christmas Day")

	return h
}

// observed moves Saturday holidays to Friday and Sunday holidays to Monday
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := Date(year, month, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := Date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter computes Western Easter Sunday (anonymous Gregorian algorithm)
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return Date(year, time.Month(month), day)
}
