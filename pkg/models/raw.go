package models

import "time"

// NamedEntity is an element of the department and office lists on a board job.
type NamedEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// APIJob is a staged row from the live job-board feed, exactly as received.
type APIJob struct {
	ID            int64         `json:"id" db:"id"`
	InternalJobID *int64        `json:"internal_job_id,omitempty" db:"internal_job_id"`
	Title         string        `json:"title" db:"title"`
	AbsoluteURL   *string       `json:"absolute_url,omitempty" db:"absolute_url"`
	LocationName  *string       `json:"location_name,omitempty" db:"location_name"`
	Content       *string       `json:"content,omitempty" db:"content"`
	Departments   []NamedEntity `json:"departments,omitempty"`
	Offices       []NamedEntity `json:"offices,omitempty"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}

// HistoryJob is a staged row from the historical export. Date columns are kept
// as the literal text found in the file.
type HistoryJob struct {
	JobID         int64   `json:"job_id" db:"job_id"`
	InternalJobID *int64  `json:"internal_job_id,omitempty" db:"internal_job_id"`
	AbsoluteURL   *string `json:"absolute_url,omitempty" db:"absolute_url"`
	Title         string  `json:"title" db:"title"`
	Department    *string `json:"department,omitempty" db:"department"`
	Location      *string `json:"location,omitempty" db:"location"`
	CompanyName   *string `json:"company_name,omitempty" db:"company_name"`
	OpenDate      *string `json:"open_date,omitempty" db:"open_date"`
	CloseDate     *string `json:"close_date,omitempty" db:"close_date"`
}

// RawSet is the full content of both staging areas for one run.
type RawSet struct {
	API     []APIJob
	History []HistoryJob
}

func (r RawSet) Count() int {
	return len(r.API) + len(r.History)
}
