// Package canonicaljob persists the canonical job stream (silver.jobs).
package canonicaljob

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const jobsTable = "silver.jobs"

var jobColumns = []string{
	"record_key", "job_id", "internal_job_id", "title", "absolute_url", "department",
	"location", "company_name", "open_date", "close_date", "source", "loaded_at",
}

type Repository struct {
	db        database.DB
	logger    ectologger.Logger
	batchSize int
}

func NewRepository(db database.DB, logger ectologger.Logger, batchSize int) *Repository {
	return &Repository{db: db, logger: logger, batchSize: batchSize}
}

// Replace truncates silver.jobs and writes jobs. It joins a transaction
// already carried by ctx.
func (r *Repository) Replace(ctx context.Context, jobs []models.Job) error {
	ctx, span := tracing.StartSpan(ctx, "canonicaljob.Repository.Replace")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return repositories.Internal("failed to begin canonical transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, database.Truncate(jobsTable)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to truncate %s", jobsTable)
		return repositories.Internal("failed to truncate canonical jobs")
	}

	rows := make([]database.Row, len(jobs))
	for i, job := range jobs {
		rows[i] = database.Row{
			job.RecordKey, job.JobID, job.InternalJobID, job.Title, job.AbsoluteURL, job.Department,
			job.Location, job.CompanyName, repositories.DateArg(job.OpenDate), repositories.DateArg(job.CloseDate),
			string(job.Source), job.LoadedAt,
		}
	}

	written, err := repositories.ExecStatements(ctx, tx, database.BatchInsert(jobsTable, jobColumns, rows, r.batchSize))
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"rows":    len(rows),
			"written": written,
		}).Errorf("failed to insert into %s", jobsTable)
		return repositories.Internal("failed to write canonical jobs")
	}

	if err := tx.Commit(ctx); err != nil {
		return repositories.Internal("failed to commit canonical jobs")
	}

	tracing.SetRows(span, "jobs", written)
	r.logger.WithContext(ctx).WithFields(map[string]any{"rows": written}).Debugf("Replaced %s", jobsTable)
	return nil
}

// List returns the canonical stream in record order.
func (r *Repository) List(ctx context.Context) ([]models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicaljob.Repository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(jobColumns...).From(jobsTable).OrderBy("record_key")
	query, args := sb.Build()

	var jobs []models.Job
	if err := r.db.Executor(ctx).SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s", jobsTable)
		return nil, repositories.Internal("failed to read canonical jobs")
	}
	return jobs, nil
}

// GetByJobID returns every canonical row carrying jobID; two rows mean the
// id arrived from both sources.
func (r *Repository) GetByJobID(ctx context.Context, jobID int64) ([]models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicaljob.Repository.GetByJobID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(jobColumns...).From(jobsTable)
	sb.Where(sb.Equal("job_id", jobID))
	sb.OrderBy("record_key")
	query, args := sb.Build()

	var jobs []models.Job
	if err := r.db.Executor(ctx).SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("failed to get canonical job")
		return nil, repositories.Internal("failed to get canonical job")
	}
	if len(jobs) == 0 {
		return nil, repositories.NotFound("job %d does not exist", jobID)
	}
	return jobs, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicaljob.Repository.Count")
	defer span.End()

	var count int64
	if err := r.db.Executor(ctx).GetContext(ctx, &count, "SELECT COUNT(*) FROM "+jobsTable); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to count %s", jobsTable)
		return 0, repositories.Internal("failed to count canonical jobs")
	}
	return count, nil
}
