package models

import "time"

type DimensionKind string

const (
	DimensionDepartment DimensionKind = "department"
	DimensionLocation   DimensionKind = "location"
)

// Dimension is one row of a department or location dimension. Keys are dense,
// assigned in ascending name order, and only stable within a single run.
type Dimension struct {
	Key  int    `json:"key" db:"key"`
	Name string `json:"name" db:"name"`
}

// CalendarDay is one row of the date spine.
type CalendarDay struct {
	DateKey   int       `json:"date_key" db:"date_key"`
	Date      time.Time `json:"full_date" db:"full_date"`
	Year      int       `json:"year" db:"year"`
	Quarter   int       `json:"quarter" db:"quarter"`
	Month     int       `json:"month" db:"month"`
	MonthName string    `json:"month_name" db:"month_name"`
	DayOfWeek int       `json:"day_of_week" db:"day_of_week"`
	IsWeekend bool      `json:"is_weekend" db:"is_weekend"`
}
