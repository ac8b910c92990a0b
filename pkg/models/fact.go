package models

import "time"

// Fact is one row of the job fact table. Foreign keys are nil when the
// referenced dimension or calendar row could not be resolved.
type Fact struct {
	FactKey       int64     `json:"fact_key" db:"fact_key"`
	JobID         int64     `json:"job_id" db:"job_id"`
	Title         string    `json:"title" db:"title"`
	DepartmentKey *int      `json:"department_key,omitempty" db:"department_key"`
	LocationKey   *int      `json:"location_key,omitempty" db:"location_key"`
	OpenDateKey   *int      `json:"open_date_key,omitempty" db:"open_date_key"`
	CloseDateKey  *int      `json:"close_date_key,omitempty" db:"close_date_key"`
	IsOpen        bool      `json:"is_open" db:"is_open"`
	DaysToFill    *int      `json:"days_to_fill,omitempty" db:"days_to_fill"`
	Source        Source    `json:"source" db:"source"`
	LoadedAt      time.Time `json:"loaded_at" db:"loaded_at"`
}
