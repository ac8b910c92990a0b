// Package warehouse persists the gold star schema: department and location
// dimensions, the date spine and the job fact table.
package warehouse

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DepartmentTable = "gold.dim_department"
	LocationTable   = "gold.dim_location"
	DateTable       = "gold.dim_date"
	FactTable       = "gold.fact_jobs"
)

var (
	dateColumns = []string{"date_key", "full_date", "year", "quarter", "month", "month_name", "day_of_week", "is_weekend"}
	factColumns = []string{
		"fact_key", "job_id", "title", "department_key", "location_key", "open_date_key",
		"close_date_key", "is_open", "days_to_fill", "source", "loaded_at",
	}
)

type Repository struct {
	db        database.DB
	logger    ectologger.Logger
	batchSize int
}

func NewRepository(db database.DB, logger ectologger.Logger, batchSize int) *Repository {
	return &Repository{db: db, logger: logger, batchSize: batchSize}
}

// Replace truncates every gold table and writes the star, dimensions before
// facts. It joins a transaction already carried by ctx.
func (r *Repository) Replace(ctx context.Context, snapshot models.Star) error {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Repository.Replace")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return repositories.Internal("failed to begin warehouse transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, database.Truncate(FactTable, DepartmentTable, LocationTable, DateTable)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to truncate gold tables")
		return repositories.Internal("failed to truncate warehouse tables")
	}

	writes := []struct {
		table   string
		columns []string
		rows    []database.Row
	}{
		{DepartmentTable, []string{"department_key", "department_name"}, dimensionRows(snapshot.Departments)},
		{LocationTable, []string{"location_key", "location_name"}, dimensionRows(snapshot.Locations)},
		{DateTable, dateColumns, calendarRows(snapshot.Calendar)},
		{FactTable, factColumns, factRows(snapshot.Facts)},
	}

	for _, w := range writes {
		written, err := repositories.ExecStatements(ctx, tx, database.BatchInsert(w.table, w.columns, w.rows, r.batchSize))
		if err != nil {
			tracing.RecordError(span, err)
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"table":   w.table,
				"rows":    len(w.rows),
				"written": written,
			}).Errorf("failed to insert into %s", w.table)
			return repositories.Internal("failed to write " + w.table)
		}
		tracing.SetRows(span, w.table, written)
	}

	if err := tx.Commit(ctx); err != nil {
		return repositories.Internal("failed to commit warehouse tables")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"departments": len(snapshot.Departments),
		"locations":   len(snapshot.Locations),
		"calendar":    len(snapshot.Calendar),
		"facts":       len(snapshot.Facts),
	}).Debug("Replaced warehouse tables")
	return nil
}

func dimensionRows(dims []models.Dimension) []database.Row {
	rows := make([]database.Row, len(dims))
	for i, dim := range dims {
		rows[i] = database.Row{dim.Key, dim.Name}
	}
	return rows
}

func calendarRows(days []models.CalendarDay) []database.Row {
	rows := make([]database.Row, len(days))
	for i, day := range days {
		rows[i] = database.Row{
			day.DateKey, repositories.DateArg(&day.Date), day.Year, day.Quarter, day.Month,
			day.MonthName, day.DayOfWeek, day.IsWeekend,
		}
	}
	return rows
}

func factRows(facts []models.Fact) []database.Row {
	rows := make([]database.Row, len(facts))
	for i, fact := range facts {
		rows[i] = database.Row{
			fact.FactKey, fact.JobID, fact.Title, repositories.IntArg(fact.DepartmentKey), repositories.IntArg(fact.LocationKey),
			repositories.IntArg(fact.OpenDateKey), repositories.IntArg(fact.CloseDateKey), fact.IsOpen,
			repositories.IntArg(fact.DaysToFill), string(fact.Source), fact.LoadedAt,
		}
	}
	return rows
}

// Load reads the whole gold schema in key order.
func (r *Repository) Load(ctx context.Context) (models.Star, error) {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Repository.Load")
	defer span.End()

	var snapshot models.Star
	var err error
	if snapshot.Departments, err = r.dimension(ctx, DepartmentTable, "department_key", "department_name"); err != nil {
		return models.Star{}, err
	}
	if snapshot.Locations, err = r.dimension(ctx, LocationTable, "location_key", "location_name"); err != nil {
		return models.Star{}, err
	}

	exec := r.db.Executor(ctx)

	sb := database.NewSelectBuilder()
	sb.Select(dateColumns...).From(DateTable).OrderBy("date_key")
	query, args := sb.Build()
	if err := exec.SelectContext(ctx, &snapshot.Calendar, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s", DateTable)
		return models.Star{}, repositories.Internal("failed to read calendar")
	}

	fb := database.NewSelectBuilder()
	fb.Select(factColumns...).From(FactTable).OrderBy("fact_key")
	query, args = fb.Build()
	if err := exec.SelectContext(ctx, &snapshot.Facts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s", FactTable)
		return models.Star{}, repositories.Internal("failed to read facts")
	}

	return snapshot, nil
}

func (r *Repository) dimension(ctx context.Context, table, keyColumn, nameColumn string) ([]models.Dimension, error) {
	sb := database.NewSelectBuilder()
	sb.Select(keyColumn+" AS key", nameColumn+" AS name").From(table).OrderBy(keyColumn)
	query, args := sb.Build()

	var rows []models.Dimension
	if err := r.db.Executor(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s", table)
		return nil, repositories.Internal("failed to read " + table)
	}
	return rows, nil
}

// Counts returns the row count of every gold table keyed by table name.
func (r *Repository) Counts(ctx context.Context) (map[string]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Repository.Counts")
	defer span.End()

	counts := make(map[string]int64, 4)
	for _, table := range []string{DepartmentTable, LocationTable, DateTable, FactTable} {
		var count int64
		if err := r.db.Executor(ctx).GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
			r.logger.WithContext(ctx).WithError(err).Errorf("failed to count %s", table)
			return nil, repositories.Internal("failed to count " + table)
		}
		counts[table] = count
	}
	return counts, nil
}
