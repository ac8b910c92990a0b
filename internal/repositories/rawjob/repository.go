// Package rawjob persists the two bronze staging tables.
package rawjob

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	apiTable     = "bronze.raw_jobs_api"
	historyTable = "bronze.raw_jobs_history"
)

var apiColumns = []string{
	"staged_order", "id", "internal_job_id", "title", "absolute_url", "location_name",
	"content", "departments", "offices", "updated_at", "ingested_at",
}

var historyColumns = []string{
	"staged_order", "job_id", "internal_job_id", "absolute_url", "title", "department",
	"location", "company_name", "open_date", "close_date", "ingested_at",
}

type apiRow struct {
	ID            int64                                 `db:"id"`
	InternalJobID *int64                                `db:"internal_job_id"`
	Title         string                                `db:"title"`
	AbsoluteURL   *string                               `db:"absolute_url"`
	LocationName  *string                               `db:"location_name"`
	Content       *string                               `db:"content"`
	Departments   database.JSONB[[]models.NamedEntity] `db:"departments"`
	Offices       database.JSONB[[]models.NamedEntity] `db:"offices"`
	UpdatedAt     *time.Time                            `db:"updated_at"`
}

type Repository struct {
	db        database.DB
	logger    ectologger.Logger
	batchSize int
}

func NewRepository(db database.DB, logger ectologger.Logger, batchSize int) *Repository {
	return &Repository{db: db, logger: logger, batchSize: batchSize}
}

// ReplaceRaw truncates both staging tables and loads raw into them in one transaction.
func (r *Repository) ReplaceRaw(ctx context.Context, raw models.RawSet) error {
	ctx, span := tracing.StartSpan(ctx, "rawjob.Repository.ReplaceRaw")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return repositories.Internal("failed to begin staging transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, database.Truncate(apiTable, historyTable)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to truncate staging tables")
		return repositories.Internal("failed to truncate staging tables")
	}

	now := time.Now().UTC()

	apiRows := make([]database.Row, len(raw.API))
	for i, job := range raw.API {
		apiRows[i] = database.Row{
			i + 1, job.ID, job.InternalJobID, job.Title, job.AbsoluteURL, job.LocationName, job.Content,
			database.NewJSONB(job.Departments), database.NewJSONB(job.Offices), job.UpdatedAt, now,
		}
	}
	if _, err := repositories.ExecStatements(ctx, tx, database.BatchInsert(apiTable, apiColumns, apiRows, r.batchSize)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"rows": len(apiRows)}).Errorf("failed to insert into %s", apiTable)
		return repositories.Internal("failed to stage api jobs")
	}

	historyRows := make([]database.Row, len(raw.History))
	for i, job := range raw.History {
		historyRows[i] = database.Row{
			i + 1, job.JobID, job.InternalJobID, job.AbsoluteURL, job.Title, job.Department,
			job.Location, job.CompanyName, job.OpenDate, job.CloseDate, now,
		}
	}
	if _, err := repositories.ExecStatements(ctx, tx, database.BatchInsert(historyTable, historyColumns, historyRows, r.batchSize)); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"rows": len(historyRows)}).Errorf("failed to insert into %s", historyTable)
		return repositories.Internal("failed to stage history jobs")
	}

	if err := tx.Commit(ctx); err != nil {
		return repositories.Internal("failed to commit staging transaction")
	}

	tracing.SetRows(span, "raw_jobs_api", len(apiRows))
	tracing.SetRows(span, "raw_jobs_history", len(historyRows))
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"raw_api_rows":     len(apiRows),
		"raw_history_rows": len(historyRows),
	}).Debug("Replaced staging tables")
	return nil
}

// Load reads both staging tables in staged order.
func (r *Repository) Load(ctx context.Context) (models.RawSet, error) {
	ctx, span := tracing.StartSpan(ctx, "rawjob.Repository.Load")
	defer span.End()

	exec := r.db.Executor(ctx)

	sb := database.NewSelectBuilder()
	sb.Select("id", "internal_job_id", "COALESCE(title, '') AS title", "absolute_url", "location_name",
		"content", "COALESCE(departments, '[]'::jsonb) AS departments", "COALESCE(offices, '[]'::jsonb) AS offices", "updated_at").
		From(apiTable).
		OrderBy("staged_order")
	query, args := sb.Build()

	var rows []apiRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s", apiTable)
		return models.RawSet{}, repositories.Internal("failed to read staged api jobs")
	}

	raw := models.RawSet{API: make([]models.APIJob, len(rows))}
	for i, row := range rows {
		raw.API[i] = models.APIJob{
			ID:            row.ID,
			InternalJobID: row.InternalJobID,
			Title:         row.Title,
			AbsoluteURL:   row.AbsoluteURL,
			LocationName:  row.LocationName,
			Content:       row.Content,
			Departments:   row.Departments.GetValue(),
			Offices:       row.Offices.GetValue(),
			UpdatedAt:     row.UpdatedAt,
		}
	}

	hb := database.NewSelectBuilder()
	hb.Select("job_id", "internal_job_id", "absolute_url", "COALESCE(title, '') AS title", "department",
		"location", "company_name", "open_date", "close_date").
		From(historyTable).
		OrderBy("staged_order")
	query, args = hb.Build()

	if err := exec.SelectContext(ctx, &raw.History, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s", historyTable)
		return models.RawSet{}, repositories.Internal("failed to read staged history jobs")
	}

	tracing.SetRows(span, "raw", raw.Count())
	return raw, nil
}

// Counts returns the row count of each staging table.
func (r *Repository) Counts(ctx context.Context) (api int64, history int64, err error) {
	ctx, span := tracing.StartSpan(ctx, "rawjob.Repository.Counts")
	defer span.End()

	exec := r.db.Executor(ctx)
	if err := exec.GetContext(ctx, &api, "SELECT COUNT(*) FROM "+apiTable); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to count %s", apiTable)
		return 0, 0, repositories.Internal("failed to count staged api jobs")
	}
	if err := exec.GetContext(ctx, &history, "SELECT COUNT(*) FROM "+historyTable); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to count %s", historyTable)
		return 0, 0, repositories.Internal("failed to count staged history jobs")
	}
	return api, history, nil
}
