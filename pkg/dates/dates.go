// Package dates holds the calendar-date handling shared by reconciliation, the
// calendar spine and the fact builder. A calendar date is a time.Time at
// midnight UTC.
package dates

import (
	"strings"
	"time"
)

// Accepted layouts for literal dates in the historical export, tried in order.
var Layouts = []string{
	"01/02/2006",
	"2006-01-02",
}

// Parse reads a literal date using the accepted layouts. It returns false
// instead of an error when nothing matches: a bad literal is data, not a failure.
func Parse(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range Layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParsePtr is Parse for nullable columns.
func ParsePtr(value *string) *time.Time {
	if value == nil {
		return nil
	}
	t, ok := Parse(*value)
	if !ok {
		return nil
	}
	return &t
}

// Truncate drops the clock part of t, keeping the calendar date in UTC. The
// same instant yields the same date whatever offset it was decoded with.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Key derives the integer date key year*10000 + month*100 + day.
func Key(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the whole days from start to end; negative when end is earlier.
// It counts from Unix day numbers, since time.Duration saturates past ~292 years.
func DaysBetween(start, end time.Time) int {
	return int((Truncate(end).Unix() - Truncate(start).Unix()) / secondsPerDay)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
