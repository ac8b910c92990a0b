// Package validation holds the data-quality assertions run after each build.
// The same assertion names are used for the in-memory checks here and for the
// SQL checks over the stored tables, so results from both scopes line up.
package validation

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/calendar"
	"github.com/Ramsey-B/fern/pkg/dates"
	"github.com/Ramsey-B/fern/pkg/dimensions"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Assertion names.
const (
	CanonicalRowCount     = "canonical_row_count_matches_raw"
	FactRowCount          = "fact_row_count_matches_canonical"
	FactForeignKeys       = "fact_foreign_keys_resolve"
	FactDepartmentKey     = "fact_department_key_not_null"
	FactLocationKey       = "fact_location_key_not_null"
	OpenJobsNoCloseDate   = "open_jobs_have_no_close_date"
	OpenJobsNoFillTime    = "open_jobs_have_no_days_to_fill"
	DaysToFillNonNegative = "days_to_fill_non_negative"
	DepartmentNamesUnique = "department_names_unique"
	LocationNamesUnique   = "location_names_unique"
	DimensionNamesBlank   = "dimension_names_not_blank"
	CanonicalJobIDUnique  = "canonical_job_id_unique"
	CloseNotBeforeOpen    = "canonical_close_not_before_open"
	CalendarCoverage      = "calendar_covers_canonical_dates"
	CalendarGapless       = "calendar_gapless"
	DimensionTitleCase    = "dimension_names_title_case"
	SourceValuesValid     = "source_values_valid"
)

// Report is the ordered outcome of one validation pass.
type Report struct {
	Results []models.AssertionResult
}

// Failed returns the failing assertions.
func (r Report) Failed() []models.AssertionResult {
	var failed []models.AssertionResult
	for _, result := range r.Results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

func (r Report) Passed() bool {
	return len(r.Failed()) == 0
}

// Merge appends the results of other to r.
func (r Report) Merge(other Report) Report {
	results := make([]models.AssertionResult, 0, len(r.Results)+len(other.Results))
	results = append(results, r.Results...)
	results = append(results, other.Results...)
	return Report{Results: results}
}

// Count builds a result from a failing-row count. Zero failing rows passes.
func Count(scope models.AssertionScope, name string, failing int64) models.AssertionResult {
	result := models.AssertionResult{Scope: scope, Name: name, Passed: failing == 0, FailingRows: failing}
	if failing != 0 {
		result.Message = fmt.Sprintf("%d rows violate %s", failing, name)
	}
	return result
}

// Equal builds a result from two row counts that must match.
func Equal(scope models.AssertionScope, name string, got, want int64) models.AssertionResult {
	result := models.AssertionResult{Scope: scope, Name: name, Passed: got == want}
	if got != want {
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		result.FailingRows = diff
		result.Message = fmt.Sprintf("expected %d rows, found %d", want, got)
	}
	return result
}

// Input is the in-memory model of one run.
type Input struct {
	RawRows     int
	Jobs        []models.Job
	Departments dimensions.Set
	Locations   dimensions.Set
	Calendar    calendar.Spine
	Facts       []models.Fact
}

// Check runs every model-scope assertion over in.
func Check(in Input) Report {
	const scope = models.ScopeModel

	results := []models.AssertionResult{
		Equal(scope, CanonicalRowCount, int64(len(in.Jobs)), int64(in.RawRows)),
		Equal(scope, FactRowCount, int64(len(in.Facts)), int64(len(in.Jobs))),
		Count(scope, FactForeignKeys, danglingKeys(in)),
		Count(scope, FactDepartmentKey, countFacts(in.Facts, func(f models.Fact) bool { return f.DepartmentKey == nil })),
		Count(scope, FactLocationKey, countFacts(in.Facts, func(f models.Fact) bool { return f.LocationKey == nil })),
		Count(scope, OpenJobsNoCloseDate, countFacts(in.Facts, func(f models.Fact) bool { return f.IsOpen && f.CloseDateKey != nil })),
		Count(scope, OpenJobsNoFillTime, countFacts(in.Facts, func(f models.Fact) bool { return f.IsOpen && f.DaysToFill != nil })),
		Count(scope, DaysToFillNonNegative, countFacts(in.Facts, func(f models.Fact) bool { return f.DaysToFill != nil && *f.DaysToFill < 0 })),
		Count(scope, DepartmentNamesUnique, duplicateNames(in.Departments.Rows)),
		Count(scope, LocationNamesUnique, duplicateNames(in.Locations.Rows)),
		Count(scope, DimensionNamesBlank, blankNames(in.Departments.Rows)+blankNames(in.Locations.Rows)),
		Count(scope, CanonicalJobIDUnique, duplicateJobIDs(in.Jobs)),
		Count(scope, CloseNotBeforeOpen, countJobs(in.Jobs, func(j models.Job) bool {
			return j.OpenDate != nil && j.CloseDate != nil && j.CloseDate.Before(*j.OpenDate)
		})),
		Count(scope, CalendarCoverage, countJobs(in.Jobs, func(j models.Job) bool { return !in.Calendar.Covers(j.OpenDate, j.CloseDate) })),
		Count(scope, CalendarGapless, calendarGaps(in.Calendar.Days)),
		Count(scope, DimensionTitleCase, notTitleCase(in.Departments.Rows)+notTitleCase(in.Locations.Rows)),
		Count(scope, SourceValuesValid, countJobs(in.Jobs, func(j models.Job) bool { return !j.Source.Valid() })),
	}
	return Report{Results: results}
}

func countFacts(facts []models.Fact, violates func(models.Fact) bool) int64 {
	var n int64
	for _, fact := range facts {
		if violates(fact) {
			n++
		}
	}
	return n
}

func countJobs(jobs []models.Job, violates func(models.Job) bool) int64 {
	var n int64
	for _, job := range jobs {
		if violates(job) {
			n++
		}
	}
	return n
}

func danglingKeys(in Input) int64 {
	departments := keySet(in.Departments.Rows)
	locations := keySet(in.Locations.Rows)
	days := make(map[int]struct{}, len(in.Calendar.Days))
	for _, day := range in.Calendar.Days {
		days[day.DateKey] = struct{}{}
	}

	dangling := func(key *int, known map[int]struct{}) bool {
		if key == nil {
			return false
		}
		_, ok := known[*key]
		return !ok
	}

	return countFacts(in.Facts, func(f models.Fact) bool {
		return dangling(f.DepartmentKey, departments) ||
			dangling(f.LocationKey, locations) ||
			dangling(f.OpenDateKey, days) ||
			dangling(f.CloseDateKey, days)
	})
}

func keySet(rows []models.Dimension) map[int]struct{} {
	keys := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		keys[row.Key] = struct{}{}
	}
	return keys
}

// duplicateNames counts rows whose name appears more than once.
func duplicateNames(rows []models.Dimension) int64 {
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name]++
	}
	var n int64
	for _, c := range counts {
		if c > 1 {
			n += c
		}
	}
	return n
}

func blankNames(rows []models.Dimension) int64 {
	var n int64
	for _, row := range rows {
		if normalizers.IsBlank(row.Name) {
			n++
		}
	}
	return n
}

func notTitleCase(rows []models.Dimension) int64 {
	var n int64
	for _, row := range rows {
		if row.Name != normalizers.TitleCase(row.Name) {
			n++
		}
	}
	return n
}

// duplicateJobIDs counts every canonical row whose job_id is shared with another row.
func duplicateJobIDs(jobs []models.Job) int64 {
	counts := make(map[int64]int64, len(jobs))
	for _, job := range jobs {
		counts[job.JobID]++
	}
	var n int64
	for _, c := range counts {
		if c > 1 {
			n += c
		}
	}
	return n
}

// calendarGaps counts adjacent pairs that are not exactly one day apart.
func calendarGaps(days []models.CalendarDay) int64 {
	var n int64
	for i := 1; i < len(days); i++ {
		if dates.DaysBetween(days[i-1].Date, days[i].Date) != 1 {
			n++
		}
	}
	return n
}

// Summary maps each assertion name to its failing-row count; handy for logs.
func (r Report) Summary() map[string]any {
	summary := make(map[string]any, len(r.Results))
	for _, result := range r.Results {
		summary[string(result.Scope)+"."+result.Name] = result.FailingRows
	}
	return summary
}
