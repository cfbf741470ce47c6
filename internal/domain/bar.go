package domain

import "time"

// Bar represents one OHLCV price bar for a symbol on a business day.
type Bar struct {
	Symbol string
	Date   time.Time // calendar date, normalized to midnight UTC
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IsBusinessDay reports whether t falls on a weekday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameCalendarDay reports whether a and b fall on the same UTC calendar date.
func SameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
