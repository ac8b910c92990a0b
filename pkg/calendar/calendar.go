// Package calendar generates the date spine used by the fact table.
package calendar

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/dates"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Spine is a gapless run of calendar days with a date-key index.
type Spine struct {
	Days  []models.CalendarDay
	index map[int]struct{}
}

// Generate emits one row per day from anchor through runDate plus horizonYears,
// inclusive. The output depends only on its arguments. An end before the anchor
// yields an empty spine.
func Generate(anchor, runDate time.Time, horizonYears int) Spine {
	start := dates.Truncate(anchor)
	end := dates.Truncate(runDate).AddDate(horizonYears, 0, 0)

	spine := Spine{index: make(map[int]struct{})}
	if end.Before(start) {
		return spine
	}

	spine.Days = make([]models.CalendarDay, 0, dates.DaysBetween(start, end)+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		row := Day(day)
		spine.Days = append(spine.Days, row)
		spine.index[row.DateKey] = struct{}{}
	}
	return spine
}

// Day derives the calendar attributes of a single date.
func Day(t time.Time) models.CalendarDay {
	t = dates.Truncate(t)
	weekday := dates.ISOWeekday(t)
	return models.CalendarDay{
		DateKey:   dates.Key(t),
		Date:      t,
		Year:      t.Year(),
		Quarter:   dates.Quarter(t),
		Month:     int(t.Month()),
		MonthName: t.Month().String(),
		DayOfWeek: weekday,
		IsWeekend: weekday >= 6,
	}
}

// Lookup returns the date key of t when the spine covers it, nil otherwise.
func (s Spine) Lookup(t *time.Time) *int {
	if t == nil {
		return nil
	}
	key := dates.Key(*t)
	if _, ok := s.index[key]; !ok {
		return nil
	}
	return &key
}

func (s Spine) Len() int {
	return len(s.Days)
}

// Covers reports whether the spine contains every non-nil date given.
func (s Spine) Covers(ts ...*time.Time) bool {
	for _, t := range ts {
		if t != nil && s.Lookup(t) == nil {
			return false
		}
	}
	return true
}

// FromDays rebuilds a Spine from stored rows.
func FromDays(days []models.CalendarDay) Spine {
	spine := Spine{Days: days, index: make(map[int]struct{}, len(days))}
	for _, day := range days {
		spine.index[day.DateKey] = struct{}{}
	}
	return spine
}
