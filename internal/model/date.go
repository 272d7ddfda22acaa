package model

import "time"

// DateFormat is the calendar-date layout used in storage and fingerprints.
const DateFormat = "2006-01-02"

// Day truncates t to its calendar date, as a UTC midnight. The year, month
// and day are read from t as given; no timezone conversion happens.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayPtr is Day for optional dates.
func DayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}
