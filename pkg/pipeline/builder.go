// Package pipeline builds the dimensional model from the staged sources and
// runs it end to end against the store.
package pipeline

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/calendar"
	"github.com/Ramsey-B/fern/pkg/dimensions"
	"github.com/Ramsey-B/fern/pkg/facts"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/validation"
)

const (
	DefaultHorizonYears     = 2
	DefaultOrganizationName = "OfferZen"
)

// DefaultAnchor is the first day of the calendar spine.
var DefaultAnchor = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// BuildOptions are the per-deployment inputs of a build.
type BuildOptions struct {
	OrganizationName string
	Anchor           time.Time
	HorizonYears     int
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.OrganizationName == "" {
		o.OrganizationName = DefaultOrganizationName
	}
	if o.Anchor.IsZero() {
		o.Anchor = DefaultAnchor
	}
	if o.HorizonYears < 0 {
		o.HorizonYears = DefaultHorizonYears
	}
	return o
}

// Model is everything one run derives from its raw inputs.
type Model struct {
	RunTime        time.Time
	RawAPIRows     int
	RawHistoryRows int
	Jobs           []models.Job
	Departments    dimensions.Set
	Locations      dimensions.Set
	Calendar       calendar.Spine
	Facts          []models.Fact
	Issues         []reconcile.FieldIssue
	Unresolved     facts.Unresolved
}

// Build is a pure function of the staged rows and the run time. Calling it
// twice with the same arguments yields identical models.
func Build(raw models.RawSet, runTime time.Time, opts BuildOptions) Model {
	opts = opts.withDefaults()
	runTime = runTime.UTC()

	reconciled := reconcile.Reconcile(raw, reconcile.Options{
		OrganizationName: opts.OrganizationName,
		LoadedAt:         runTime,
	})

	departments := dimensions.Departments(reconciled.Jobs)
	locations := dimensions.Locations(reconciled.Jobs)
	spine := calendar.Generate(opts.Anchor, runTime, opts.HorizonYears)
	factRows, unresolved := facts.Build(reconciled.Jobs, departments, locations, spine)

	return Model{
		RunTime:        runTime,
		RawAPIRows:     len(raw.API),
		RawHistoryRows: len(raw.History),
		Jobs:           reconciled.Jobs,
		Departments:    departments,
		Locations:      locations,
		Calendar:       spine,
		Facts:          factRows,
		Issues:         reconciled.Issues,
		Unresolved:     unresolved,
	}
}

// Star returns the dimensional tables of the model.
func (m Model) Star() models.Star {
	return models.Star{
		Departments: m.Departments.Rows,
		Locations:   m.Locations.Rows,
		Calendar:    m.Calendar.Days,
		Facts:       m.Facts,
	}
}

// Validate runs the in-memory assertions over the model.
func (m Model) Validate() validation.Report {
	return validation.Check(validation.Input{
		RawRows:     m.RawAPIRows + m.RawHistoryRows,
		Jobs:        m.Jobs,
		Departments: m.Departments,
		Locations:   m.Locations,
		Calendar:    m.Calendar,
		Facts:       m.Facts,
	})
}
