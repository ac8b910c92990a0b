// Package reconcile turns the two staged job sources into one canonical stream.
// Each source has its own normalization function; both converge on models.Job.
package reconcile

import (
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/dates"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Normalizer chains applied to the dimension-bearing fields.
var (
	DepartmentChain = []string{"trim", "title"}
	LocationChain   = []string{"trim", "title"}
)

// IssueKind classifies a recovered field-level problem.
type IssueKind string

const (
	IssueUnparseableDate   IssueKind = "unparseable_date"
	IssueDefaultDepartment IssueKind = "default_department"
	IssueDefaultLocation   IssueKind = "default_location"
	IssueDefaultCompany    IssueKind = "default_company"
	IssueMissingOpenDate   IssueKind = "missing_open_date"
	IssueCloseBeforeOpen   IssueKind = "close_before_open"
)

// FieldIssue records a malformed or missing field that was replaced by null or
// a default. Issues never stop a run.
type FieldIssue struct {
	Source models.Source `json:"source"`
	JobID  int64         `json:"job_id"`
	Field  string        `json:"field"`
	Kind   IssueKind     `json:"kind"`
	Value  string        `json:"value,omitempty"`
}

// Options carries the per-run inputs of reconciliation.
type Options struct {
	OrganizationName string
	LoadedAt         time.Time
}

// Result is the canonical stream plus the issues recovered while building it.
type Result struct {
	Jobs   []models.Job
	Issues []FieldIssue
}

// Reconcile normalizes both sources and concatenates them, API rows first, each
// in staged order. Rows are never dropped or deduplicated: a job_id present in
// both sources yields two canonical rows.
func Reconcile(raw models.RawSet, opts Options) Result {
	jobs := make([]models.Job, 0, raw.Count())
	var issues []FieldIssue

	for _, apiJob := range raw.API {
		job, jobIssues := FromAPI(apiJob, opts)
		jobs = append(jobs, job)
		issues = append(issues, jobIssues...)
	}
	for _, historyJob := range raw.History {
		job, jobIssues := FromHistory(historyJob, opts)
		jobs = append(jobs, job)
		issues = append(issues, jobIssues...)
	}

	for i := range jobs {
		jobs[i].RecordKey = int64(i + 1)
	}

	return Result{Jobs: jobs, Issues: issues}
}

// FromAPI normalizes a live-feed row. The job is open by definition, so the
// close date is always nil and the open date falls back to the last update.
func FromAPI(raw models.APIJob, opts Options) (models.Job, []FieldIssue) {
	var issues []FieldIssue
	issue := func(field string, kind IssueKind, value string) {
		issues = append(issues, FieldIssue{Source: models.SourceAPI, JobID: raw.ID, Field: field, Kind: kind, Value: value})
	}

	department, defaulted := normalizers.DefaultIfBlank(firstDepartmentName(raw.Departments), models.UnknownValue, DepartmentChain...)
	if defaulted {
		issue("department", IssueDefaultDepartment, "")
	}

	location, defaulted := normalizers.DefaultIfBlank(raw.LocationName, models.UnknownValue, LocationChain...)
	if defaulted {
		issue("location", IssueDefaultLocation, "")
	}

	var openDate *time.Time
	if raw.UpdatedAt != nil {
		d := dates.Truncate(*raw.UpdatedAt)
		openDate = &d
	} else {
		issue("open_date", IssueMissingOpenDate, "")
	}

	return models.Job{
		JobID:         raw.ID,
		InternalJobID: raw.InternalJobID,
		Title:         normalizers.Trim(raw.Title),
		AbsoluteURL:   normalizers.NullIfBlank(raw.AbsoluteURL),
		Department:    department,
		Location:      location,
		CompanyName:   opts.OrganizationName,
		OpenDate:      openDate,
		CloseDate:     nil,
		Source:        models.SourceAPI,
		LoadedAt:      opts.LoadedAt,
	}, issues
}

// FromHistory normalizes a row of the historical export.
func FromHistory(raw models.HistoryJob, opts Options) (models.Job, []FieldIssue) {
	var issues []FieldIssue
	issue := func(field string, kind IssueKind, value string) {
		issues = append(issues, FieldIssue{Source: models.SourceHistory, JobID: raw.JobID, Field: field, Kind: kind, Value: value})
	}

	department, defaulted := normalizers.DefaultIfBlank(raw.Department, models.UnknownValue, DepartmentChain...)
	if defaulted {
		issue("department", IssueDefaultDepartment, "")
	}

	location, defaulted := normalizers.DefaultIfBlank(raw.Location, models.UnknownValue, LocationChain...)
	if defaulted {
		issue("location", IssueDefaultLocation, "")
	}

	company, defaulted := normalizers.DefaultIfBlank(raw.CompanyName, opts.OrganizationName, "trim")
	if defaulted {
		issue("company_name", IssueDefaultCompany, "")
	}

	openDate := parseDateField(raw.OpenDate, func(value string) { issue("open_date", IssueUnparseableDate, value) })
	closeDate := parseDateField(raw.CloseDate, func(value string) { issue("close_date", IssueUnparseableDate, value) })

	if openDate != nil && closeDate != nil && closeDate.Before(*openDate) {
		// kept as-is; the validation layer reports it
		issue("close_date", IssueCloseBeforeOpen, closeDate.Format("2006-01-02"))
	}

	return models.Job{
		JobID:         raw.JobID,
		InternalJobID: raw.InternalJobID,
		Title:         normalizers.Trim(raw.Title),
		AbsoluteURL:   normalizers.NullIfBlank(raw.AbsoluteURL),
		Department:    department,
		Location:      location,
		CompanyName:   company,
		OpenDate:      openDate,
		CloseDate:     closeDate,
		Source:        models.SourceHistory,
		LoadedAt:      opts.LoadedAt,
	}, issues
}

func firstDepartmentName(departments []models.NamedEntity) *string {
	if len(departments) == 0 {
		return nil
	}
	name := ectolinq.First(departments).Name
	return &name
}

func parseDateField(value *string, onInvalid func(string)) *time.Time {
	if value == nil || normalizers.IsBlank(*value) {
		return nil
	}
	parsed := dates.ParsePtr(value)
	if parsed == nil {
		onInvalid(*value)
	}
	return parsed
}

// CountIssues groups issues by kind.
func CountIssues(issues []FieldIssue) map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	return counts
}
