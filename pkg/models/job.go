package models

import "time"

type Source string

const (
	SourceAPI     Source = "api"
	SourceHistory Source = "history"
)

func (s Source) Valid() bool {
	return s == SourceAPI || s == SourceHistory
}

// UnknownValue replaces a blank department or location.
const UnknownValue = "Unknown"

// Job is a canonical job record: one per staged row, from either source.
// RecordKey is the row's position in the canonical stream for this run.
type Job struct {
	RecordKey     int64      `json:"record_key" db:"record_key"`
	JobID         int64      `json:"job_id" db:"job_id"`
	InternalJobID *int64     `json:"internal_job_id,omitempty" db:"internal_job_id"`
	Title         string     `json:"title" db:"title"`
	AbsoluteURL   *string    `json:"absolute_url,omitempty" db:"absolute_url"`
	Department    string     `json:"department" db:"department"`
	Location      string     `json:"location" db:"location"`
	CompanyName   string     `json:"company_name" db:"company_name"`
	OpenDate      *time.Time `json:"open_date,omitempty" db:"open_date"`
	CloseDate     *time.Time `json:"close_date,omitempty" db:"close_date"`
	Source        Source     `json:"source" db:"source"`
	LoadedAt      time.Time  `json:"loaded_at" db:"loaded_at"`
}

// IsOpen reports whether the position has no close date.
func (j Job) IsOpen() bool {
	return j.CloseDate == nil
}
