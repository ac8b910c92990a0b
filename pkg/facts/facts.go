// Package facts joins the canonical stream against the dimensions and the
// calendar spine.
package facts

import (
	"github.com/Ramsey-B/fern/pkg/calendar"
	"github.com/Ramsey-B/fern/pkg/dates"
	"github.com/Ramsey-B/fern/pkg/dimensions"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Unresolved counts the foreign keys left null because no matching row existed.
type Unresolved struct {
	Department int
	Location   int
	OpenDate   int
	CloseDate  int
}

func (u Unresolved) Total() int {
	return u.Department + u.Location + u.OpenDate + u.CloseDate
}

// Build produces exactly one fact per canonical job, in stream order. A key
// that cannot be resolved is left nil; the row is never dropped. days_to_fill
// is reported as computed, negative values included.
func Build(jobs []models.Job, departments, locations dimensions.Set, spine calendar.Spine) ([]models.Fact, Unresolved) {
	facts := make([]models.Fact, len(jobs))
	var unresolved Unresolved

	for i, job := range jobs {
		fact := models.Fact{
			FactKey:       int64(i + 1),
			JobID:         job.JobID,
			Title:         job.Title,
			DepartmentKey: departments.Lookup(job.Department),
			LocationKey:   locations.Lookup(job.Location),
			OpenDateKey:   spine.Lookup(job.OpenDate),
			CloseDateKey:  spine.Lookup(job.CloseDate),
			IsOpen:        job.IsOpen(),
			DaysToFill:    DaysToFill(job),
			Source:        job.Source,
			LoadedAt:      job.LoadedAt,
		}

		if fact.DepartmentKey == nil {
			unresolved.Department++
		}
		if fact.LocationKey == nil {
			unresolved.Location++
		}
		if job.OpenDate != nil && fact.OpenDateKey == nil {
			unresolved.OpenDate++
		}
		if job.CloseDate != nil && fact.CloseDateKey == nil {
			unresolved.CloseDate++
		}

		facts[i] = fact
	}
	return facts, unresolved
}

// DaysToFill is close minus open in whole days, or nil unless both dates exist.
func DaysToFill(job models.Job) *int {
	if job.OpenDate == nil || job.CloseDate == nil {
		return nil
	}
	days := dates.DaysBetween(*job.OpenDate, *job.CloseDate)
	return &days
}
