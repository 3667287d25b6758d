package service

import (
	"math"
	"time"
)

// LoadBusinessLocation resolves a tenant's timezone name, falling back to UTC
// for an empty or unknown name.
func LoadBusinessLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BusinessDay normalizes a time to midnight of its calendar day in the
// tenant's business timezone. Threshold and debt-date comparisons use
// business-local days, not UTC days.
func BusinessDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// MonthPeriod returns the first day of now's month and the current business
// day, both normalized. The review period is always month-to-date.
func MonthPeriod(now time.Time, loc *time.Location) (start, end time.Time) {
	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end = BusinessDay(now, loc)
	return start, end
}

// HoursToMinutes converts a threshold in hours to minutes, rounding to the
// nearest minute.
func HoursToMinutes(hours float64) int {
	return int(math.Round(hours * 60))
}

// SameBusinessDay reports whether two instants fall on the same business day.
func SameBusinessDay(a, b time.Time, loc *time.Location) bool {
	return BusinessDay(a, loc).Equal(BusinessDay(b, loc))
}
