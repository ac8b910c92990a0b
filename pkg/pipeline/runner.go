package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/dates"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// ErrSourceUnavailable is returned when a raw source cannot be read. No table
// is rebuilt when a run fails this way.
var ErrSourceUnavailable = ingest.ErrSourceUnavailable

var ErrMissingDependency = errors.New("pipeline dependency not configured")

const (
	StageIngest   = "ingest"
	StageLoad     = "load"
	StageBuild    = "build"
	StagePersist  = "persist"
	StageValidate = "validate"
)

// Row-count labels reported per run.
const (
	TableCanonical   = "silver.jobs"
	TableDepartments = "gold.dim_department"
	TableLocations   = "gold.dim_location"
	TableCalendar    = "gold.dim_date"
	TableFacts       = "gold.fact_jobs"
)

type RawLoader interface {
	Load(ctx context.Context) (models.RawSet, error)
}

type Ingester interface {
	Ingest(ctx context.Context) (models.RawSet, error)
}

type CanonicalStore interface {
	Replace(ctx context.Context, jobs []models.Job) error
}

type WarehouseStore interface {
	Replace(ctx context.Context, star models.Star) error
}

// Transactor runs fn in one transaction carried by the context it receives.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StoreChecker runs the assertions over the persisted tables.
type StoreChecker interface {
	Check(ctx context.Context) (validation.Report, error)
}

type RunLog interface {
	Create(ctx context.Context, run *models.PipelineRun) error
	Finish(ctx context.Context, run *models.PipelineRun) error
	SaveResults(ctx context.Context, runID uuid.UUID, results []models.AssertionResult) error
}

type Locker interface {
	Hold(ctx context.Context) (func(context.Context) error, error)
}

type EventPublisher interface {
	PublishRun(ctx context.Context, evt events.RunEvent) error
}

// Dependencies wires a Runner. Ingester, Checker, Locker, Events and Observer
// are optional.
type Dependencies struct {
	Raw       RawLoader
	Ingester  Ingester
	Canonical CanonicalStore
	Warehouse WarehouseStore
	Tx        Transactor
	Checker   StoreChecker
	RunLog    RunLog
	Locker    Locker
	Events    EventPublisher
	Observer  func(models.PipelineRun)
}

func (d Dependencies) validate() error {
	switch {
	case d.Raw == nil:
		return fmt.Errorf("%w: raw loader", ErrMissingDependency)
	case d.Canonical == nil:
		return fmt.Errorf("%w: canonical store", ErrMissingDependency)
	case d.Warehouse == nil:
		return fmt.Errorf("%w: warehouse store", ErrMissingDependency)
	case d.Tx == nil:
		return fmt.Errorf("%w: transactor", ErrMissingDependency)
	case d.RunLog == nil:
		return fmt.Errorf("%w: run log", ErrMissingDependency)
	}
	return nil
}

type RunOptions struct {
	// SkipIngest rebuilds from the rows already staged.
	SkipIngest bool
	// RunDate overrides the run time used for loaded_at and the calendar horizon.
	RunDate time.Time
}

// RunReport summarizes a finished run.
type RunReport struct {
	Run        models.PipelineRun
	Validation validation.Report
	Issues     map[reconcile.IssueKind]int
	Duration   time.Duration
}

// Failed reports whether any assertion failed.
func (r RunReport) Failed() bool {
	return !r.Validation.Passed()
}

type Runner struct {
	deps   Dependencies
	opts   BuildOptions
	logger ectologger.Logger
	now    func() time.Time
}

func NewRunner(deps Dependencies, opts BuildOptions, logger ectologger.Logger) (*Runner, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Runner{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run executes one full refresh: ingest (unless skipped), build, persist
// silver and gold in one transaction, then validate in memory and in the
// store. Failed assertions do not fail the run; they are reported.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Runner.Run")
	defer span.End()

	if r.deps.Locker != nil {
		release, err := r.deps.Locker.Hold(ctx)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Pipeline run lock not acquired")
			tracing.RecordError(span, err)
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.WithContext(ctx).WithError(err).Warn("Failed to release pipeline run lock")
			}
		}()
	}

	started := r.now().UTC()
	runTime := started
	if !opts.RunDate.IsZero() {
		runTime = opts.RunDate.UTC()
	}

	run := &models.PipelineRun{
		RunID:     uuid.New(),
		RunDate:   dates.Truncate(runTime),
		Status:    models.RunStatusRunning,
		StartedAt: started,
	}
	if err := r.deps.RunLog.Create(ctx, run); err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	log := r.logger.WithContext(ctx).WithField("run_id", run.RunID.String())
	log.WithFields(map[string]any{
		"run_date":    run.RunDate.Format("2006-01-02"),
		"skip_ingest": opts.SkipIngest,
	}).Info("Pipeline run started")

	raw, err := r.raw(ctx, opts)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, r.fail(ctx, run, err)
	}

	stageStart := time.Now()
	model := Build(raw, runTime, r.opts)
	metrics.RecordStage(StageBuild, time.Since(stageStart).Seconds())

	issues := reconcile.CountIssues(model.Issues)
	for kind, count := range issues {
		metrics.RecordFieldIssues(string(kind), count)
	}
	if total := model.Unresolved.Total(); total > 0 {
		log.WithFields(map[string]any{
			"department": model.Unresolved.Department,
			"location":   model.Unresolved.Location,
			"open_date":  model.Unresolved.OpenDate,
			"close_date": model.Unresolved.CloseDate,
		}).Warnf("%d fact foreign keys left unresolved", total)
	}

	stageStart = time.Now()
	err = r.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.deps.Canonical.Replace(ctx, model.Jobs); err != nil {
			return err
		}
		return r.deps.Warehouse.Replace(ctx, model.Star())
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, r.fail(ctx, run, fmt.Errorf("failed to persist model: %w", err))
	}
	metrics.RecordStage(StagePersist, time.Since(stageStart).Seconds())

	stageStart = time.Now()
	report := model.Validate()
	if r.deps.Checker != nil {
		stored, err := r.deps.Checker.Check(ctx)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, r.fail(ctx, run, fmt.Errorf("failed to validate stored tables: %w", err))
		}
		report = report.Merge(stored)
	}
	metrics.RecordStage(StageValidate, time.Since(stageStart).Seconds())

	if err := r.deps.RunLog.SaveResults(ctx, run.RunID, report.Results); err != nil {
		log.WithError(err).Error("Failed to save validation results")
	}
	for _, result := range report.Results {
		metrics.RecordAssertion(string(result.Scope), result.Name, result.FailingRows)
	}

	run.RawAPIRows = model.RawAPIRows
	run.RawHistoryRows = model.RawHistoryRows
	run.CanonicalRows = len(model.Jobs)
	run.DepartmentRows = model.Departments.Len()
	run.LocationRows = model.Locations.Len()
	run.CalendarRows = model.Calendar.Len()
	run.FactRows = len(model.Facts)
	run.FieldIssues = len(model.Issues)
	run.FailedAssertions = len(report.Failed())
	recordRows(run)

	r.finish(ctx, run, models.RunStatusSucceeded, nil, report.Failed())

	if run.FailedAssertions > 0 {
		log.WithField("failed_assertions", report.Failed()).Warnf("Pipeline run finished with %d failed assertions", run.FailedAssertions)
	} else {
		log.WithField("summary", report.Summary()).Info("Pipeline run finished")
	}

	return &RunReport{
		Run:        *run,
		Validation: report,
		Issues:     issues,
		Duration:   run.FinishedAt.Sub(run.StartedAt),
	}, nil
}

// raw returns the staged rows, ingesting them first unless skipped.
func (r *Runner) raw(ctx context.Context, opts RunOptions) (models.RawSet, error) {
	start := time.Now()
	if !opts.SkipIngest && r.deps.Ingester != nil {
		raw, err := r.deps.Ingester.Ingest(ctx)
		if err != nil {
			return models.RawSet{}, err
		}
		metrics.RecordStage(StageIngest, time.Since(start).Seconds())
		return raw, nil
	}

	raw, err := r.deps.Raw.Load(ctx)
	if err != nil {
		return models.RawSet{}, fmt.Errorf("%w: staged rows: %v", ErrSourceUnavailable, err)
	}
	metrics.RecordStage(StageLoad, time.Since(start).Seconds())
	return raw, nil
}

// fail closes the run log entry as failed and returns cause. It runs on a
// context that outlives cancellation of the run.
func (r *Runner) fail(ctx context.Context, run *models.PipelineRun, cause error) error {
	ctx = context.WithoutCancel(ctx)
	r.logger.WithContext(ctx).WithError(cause).WithField("run_id", run.RunID.String()).Error("Pipeline run failed")
	r.finish(ctx, run, models.RunStatusFailed, cause, nil)
	return cause
}

func (r *Runner) finish(ctx context.Context, run *models.PipelineRun, status models.RunStatus, cause error, failed []models.AssertionResult) {
	finished := r.now().UTC()
	run.Status = status
	run.FinishedAt = &finished
	if cause != nil {
		msg := cause.Error()
		run.ErrorMessage = &msg
	}

	if err := r.deps.RunLog.Finish(ctx, run); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to close run log entry")
	}
	metrics.RecordRun(string(status), finished.Sub(run.StartedAt).Seconds(), float64(finished.Unix()))

	if r.deps.Events != nil {
		if err := r.deps.Events.PublishRun(ctx, events.NewRunEvent(*run, failed)); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to publish run event")
		}
	}
	if r.deps.Observer != nil {
		r.deps.Observer(*run)
	}
}

func recordRows(run *models.PipelineRun) {
	metrics.RecordRows(TableCanonical, run.CanonicalRows)
	metrics.RecordRows(TableDepartments, run.DepartmentRows)
	metrics.RecordRows(TableLocations, run.LocationRows)
	metrics.RecordRows(TableCalendar, run.CalendarRows)
	metrics.RecordRows(TableFacts, run.FactRows)
}
