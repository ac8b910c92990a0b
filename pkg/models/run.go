package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the run-log entry for one full refresh.
type PipelineRun struct {
	RunID            uuid.UUID  `json:"run_id" db:"run_id"`
	RunDate          time.Time  `json:"run_date" db:"run_date"`
	Status           RunStatus  `json:"status" db:"status"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	RawAPIRows       int        `json:"raw_api_rows" db:"raw_api_rows"`
	RawHistoryRows   int        `json:"raw_history_rows" db:"raw_history_rows"`
	CanonicalRows    int        `json:"canonical_rows" db:"canonical_rows"`
	DepartmentRows   int        `json:"department_rows" db:"department_rows"`
	LocationRows     int        `json:"location_rows" db:"location_rows"`
	CalendarRows     int        `json:"calendar_rows" db:"calendar_rows"`
	FactRows         int        `json:"fact_rows" db:"fact_rows"`
	FieldIssues      int        `json:"field_issues" db:"field_issues"`
	FailedAssertions int        `json:"failed_assertions" db:"failed_assertions"`
	ErrorMessage     *string    `json:"error_message,omitempty" db:"error_message"`
}

type AssertionScope string

const (
	// ScopeModel assertions run over the in-memory model before it is written.
	ScopeModel AssertionScope = "model"
	// ScopeStore assertions run as SQL over the persisted tables.
	ScopeStore AssertionScope = "store"
)

// AssertionResult is the outcome of one data-quality assertion.
type AssertionResult struct {
	Scope       AssertionScope `json:"scope" db:"scope"`
	Name        string         `json:"assertion" db:"assertion"`
	Passed      bool           `json:"passed" db:"passed"`
	FailingRows int64          `json:"failing_rows" db:"failing_rows"`
	Message     string         `json:"message,omitempty" db:"message"`
}
