// Package pipelinerun keeps the run log and the per-run validation results.
package pipelinerun

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	runsTable    = "ops.pipeline_runs"
	resultsTable = "ops.validation_results"
)

var runColumns = []string{
	"run_id", "run_date", "status", "started_at", "finished_at", "raw_api_rows", "raw_history_rows",
	"canonical_rows", "department_rows", "location_rows", "calendar_rows", "fact_rows",
	"field_issues", "failed_assertions", "error_message",
}

var resultColumns = []string{"run_id", "scope", "assertion", "passed", "failing_rows", "message"}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create inserts a run log entry, assigning a run id when it has none.
func (r *Repository) Create(ctx context.Context, run *models.PipelineRun) error {
	ctx, span := tracing.StartSpan(ctx, "pipelinerun.Repository.Create")
	defer span.End()

	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(runsTable).
		Cols(runColumns...).
		Values(run.RunID, repositories.DateArg(&run.RunDate), string(run.Status), run.StartedAt, run.FinishedAt,
			run.RawAPIRows, run.RawHistoryRows, run.CanonicalRows, run.DepartmentRows, run.LocationRows,
			run.CalendarRows, run.FactRows, run.FieldIssues, run.FailedAssertions, run.ErrorMessage)

	query, args := ib.Build()
	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"run_id": run.RunID,
		}).Error("failed to create pipeline run")
		return repositories.Internal("failed to create pipeline run")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"run_id": run.RunID}).Debugf("Created %s", runsTable)
	return nil
}

// Finish writes the final status, counts and error of a run.
func (r *Repository) Finish(ctx context.Context, run *models.PipelineRun) error {
	ctx, span := tracing.StartSpan(ctx, "pipelinerun.Repository.Finish")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(runsTable).
		Set(
			ub.Assign("status", string(run.Status)),
			ub.Assign("finished_at", run.FinishedAt),
			ub.Assign("raw_api_rows", run.RawAPIRows),
			ub.Assign("raw_history_rows", run.RawHistoryRows),
			ub.Assign("canonical_rows", run.CanonicalRows),
			ub.Assign("department_rows", run.DepartmentRows),
			ub.Assign("location_rows", run.LocationRows),
			ub.Assign("calendar_rows", run.CalendarRows),
			ub.Assign("fact_rows", run.FactRows),
			ub.Assign("field_issues", run.FieldIssues),
			ub.Assign("failed_assertions", run.FailedAssertions),
			ub.Assign("error_message", run.ErrorMessage),
		).
		Where(ub.Equal("run_id", run.RunID))

	query, args := ub.Build()
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"run_id": run.RunID,
		}).Error("failed to finish pipeline run")
		return repositories.Internal("failed to finish pipeline run")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return repositories.NotFound("pipeline run %s does not exist", run.RunID)
	}
	return nil
}

// SaveResults stores the validation results of a run, replacing earlier ones.
func (r *Repository) SaveResults(ctx context.Context, runID uuid.UUID, results []models.AssertionResult) error {
	ctx, span := tracing.StartSpan(ctx, "pipelinerun.Repository.SaveResults")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return repositories.Internal("failed to begin results transaction")
	}
	defer tx.Rollback(ctx)

	dlb := database.NewDeleteBuilder()
	dlb.DeleteFrom(resultsTable).Where(dlb.Equal("run_id", runID))
	query, args := dlb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("failed to clear validation results")
		return repositories.Internal("failed to clear validation results")
	}

	rows := make([]database.Row, len(results))
	for i, result := range results {
		rows[i] = database.Row{runID, string(result.Scope), result.Name, result.Passed, result.FailingRows, result.Message}
	}
	if _, err := repositories.ExecStatements(ctx, tx, database.BatchInsert(resultsTable, resultColumns, rows, 0)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("failed to save validation results")
		return repositories.Internal("failed to save validation results")
	}

	if err := tx.Commit(ctx); err != nil {
		return repositories.Internal("failed to commit validation results")
	}
	return nil
}

// GetByID returns one run log entry.
func (r *Repository) GetByID(ctx context.Context, runID uuid.UUID) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "pipelinerun.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(runColumns...).From(runsTable)
	sb.Where(sb.Equal("run_id", runID))
	query, args := sb.Build()

	var run models.PipelineRun
	err := r.db.Executor(ctx).GetContext(ctx, &run, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.NotFound("pipeline run %s does not exist", runID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("failed to get pipeline run")
		return nil, repositories.Internal("failed to get pipeline run")
	}
	return &run, nil
}

// Latest returns the most recently started run.
func (r *Repository) Latest(ctx context.Context) (*models.PipelineRun, error) {
	ctx, span := tracing.StartSpan(ctx, "pipelinerun.Repository.Latest")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(runColumns...).From(runsTable).OrderBy("started_at").Desc().Limit(1)
	query, args := sb.Build()

	var run models.PipelineRun
	err := r.db.Executor(ctx).GetContext(ctx, &run, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.NotFound("no pipeline run has been recorded")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get latest pipeline run")
		return nil, repositories.Internal("failed to get latest pipeline run")
	}
	return &run, nil
}

// Results returns the stored validation results of a run.
func (r *Repository) Results(ctx context.Context, runID uuid.UUID) ([]models.AssertionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "pipelinerun.Repository.Results")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("scope", "assertion", "passed", "failing_rows", "COALESCE(message, '') AS message").From(resultsTable)
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("scope", "assertion")
	query, args := sb.Build()

	var results []models.AssertionResult
	if err := r.db.Executor(ctx).SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("failed to read validation results")
		return nil, repositories.Internal("failed to read validation results")
	}
	return results, nil
}
