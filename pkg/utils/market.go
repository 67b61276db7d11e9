package utils

import (
	"time"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Session hours, minutes after midnight IST.
const (
	sessionOpenMinutes  = 9*60 + 15
	sessionCloseMinutes = 15*60 + 30
)

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// IsSessionOpen reports whether t falls inside the cash session.
func IsSessionOpen(t time.Time) bool {
	t = t.In(IndiaLocation)
	if isWeekend(t) {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= sessionOpenMinutes && m < sessionCloseMinutes
}

// LastSessionClose returns the most recent session close at or before t.
func LastSessionClose(t time.Time) time.Time {
	t = t.In(IndiaLocation)
	close := time.Date(t.Year(), t.Month(), t.Day(), 15, 30, 0, 0, IndiaLocation)
	if t.Before(close) {
		close = close.AddDate(0, 0, -1)
	}
	for isWeekend(close) {
		close = close.AddDate(0, 0, -1)
	}
	return close
}
