// Package quality runs the data-quality assertions as SQL over the stored
// bronze, silver and gold tables.
package quality

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// countQueries return the number of rows violating the named assertion.
var countQueries = []struct {
	name  string
	query string
}{
	{validation.FactForeignKeys, `
		SELECT COUNT(*) FROM gold.fact_jobs f
		LEFT JOIN gold.dim_department d ON d.department_key = f.department_key
		LEFT JOIN gold.dim_location l ON l.location_key = f.location_key
		LEFT JOIN gold.dim_date o ON o.date_key = f.open_date_key
		LEFT JOIN gold.dim_date c ON c.date_key = f.close_date_key
		WHERE (f.department_key IS NOT NULL AND d.department_key IS NULL)
		   OR (f.location_key IS NOT NULL AND l.location_key IS NULL)
		   OR (f.open_date_key IS NOT NULL AND o.date_key IS NULL)
		   OR (f.close_date_key IS NOT NULL AND c.date_key IS NULL)`},
	{validation.FactDepartmentKey, `SELECT COUNT(*) FROM gold.fact_jobs WHERE department_key IS NULL`},
	{validation.FactLocationKey, `SELECT COUNT(*) FROM gold.fact_jobs WHERE location_key IS NULL`},
	{validation.OpenJobsNoCloseDate, `SELECT COUNT(*) FROM gold.fact_jobs WHERE is_open AND close_date_key IS NOT NULL`},
	{validation.OpenJobsNoFillTime, `SELECT COUNT(*) FROM gold.fact_jobs WHERE is_open AND days_to_fill IS NOT NULL`},
	{validation.DaysToFillNonNegative, `SELECT COUNT(*) FROM gold.fact_jobs WHERE days_to_fill < 0`},
	{validation.DepartmentNamesUnique, `
		SELECT COALESCE(SUM(n), 0) FROM (
			SELECT COUNT(*) AS n FROM gold.dim_department GROUP BY department_name HAVING COUNT(*) > 1
		) dup`},
	{validation.LocationNamesUnique, `
		SELECT COALESCE(SUM(n), 0) FROM (
			SELECT COUNT(*) AS n FROM gold.dim_location GROUP BY location_name HAVING COUNT(*) > 1
		) dup`},
	{validation.DimensionNamesBlank, `
		SELECT (SELECT COUNT(*) FROM gold.dim_department WHERE TRIM(department_name) = '')
		     + (SELECT COUNT(*) FROM gold.dim_location WHERE TRIM(location_name) = '')`},
	{validation.CanonicalJobIDUnique, `
		SELECT COALESCE(SUM(n), 0) FROM (
			SELECT COUNT(*) AS n FROM silver.jobs GROUP BY job_id HAVING COUNT(*) > 1
		) dup`},
	{validation.CloseNotBeforeOpen, `SELECT COUNT(*) FROM silver.jobs WHERE close_date < open_date`},
	{validation.CalendarCoverage, `
		SELECT COUNT(*) FROM silver.jobs j
		WHERE (j.open_date IS NOT NULL AND NOT EXISTS (SELECT 1 FROM gold.dim_date d WHERE d.full_date = j.open_date))
		   OR (j.close_date IS NOT NULL AND NOT EXISTS (SELECT 1 FROM gold.dim_date d WHERE d.full_date = j.close_date))`},
	{validation.CalendarGapless, `
		SELECT COUNT(*) FROM (
			SELECT full_date - LAG(full_date) OVER (ORDER BY full_date) AS gap FROM gold.dim_date
		) g WHERE gap <> 1`},
	// a word is a run of letters: it starts upper case and continues lower case
	{validation.DimensionTitleCase, `
		SELECT (SELECT COUNT(*) FROM gold.dim_department
		         WHERE department_name ~ '[[:alpha:]][[:upper:]]' OR department_name ~ '(^|[^[:alpha:]])[[:lower:]]')
		     + (SELECT COUNT(*) FROM gold.dim_location
		         WHERE location_name ~ '[[:alpha:]][[:upper:]]' OR location_name ~ '(^|[^[:alpha:]])[[:lower:]]')`},
	{validation.SourceValuesValid, `
		SELECT (SELECT COUNT(*) FROM silver.jobs WHERE source NOT IN ('api', 'history'))
		     + (SELECT COUNT(*) FROM gold.fact_jobs WHERE source NOT IN ('api', 'history'))`},
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Check runs every store-scope assertion. Row-count conservation is checked
// first, then each violation count.
func (r *Repository) Check(ctx context.Context) (validation.Report, error) {
	ctx, span := tracing.StartSpan(ctx, "quality.Repository.Check")
	defer span.End()

	const scope = models.ScopeStore

	var counts struct {
		API       int64 `db:"api"`
		History   int64 `db:"history"`
		Canonical int64 `db:"canonical"`
		Facts     int64 `db:"facts"`
	}
	err := r.db.Executor(ctx).GetContext(ctx, &counts, `
		SELECT (SELECT COUNT(*) FROM bronze.raw_jobs_api) AS api,
		       (SELECT COUNT(*) FROM bronze.raw_jobs_history) AS history,
		       (SELECT COUNT(*) FROM silver.jobs) AS canonical,
		       (SELECT COUNT(*) FROM gold.fact_jobs) AS facts`)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count stored rows")
		return validation.Report{}, repositories.Internal("failed to count stored rows")
	}

	results := []models.AssertionResult{
		validation.Equal(scope, validation.CanonicalRowCount, counts.Canonical, counts.API+counts.History),
		validation.Equal(scope, validation.FactRowCount, counts.Facts, counts.Canonical),
	}

	for _, q := range countQueries {
		var failing int64
		if err := r.db.Executor(ctx).GetContext(ctx, &failing, q.query); err != nil {
			tracing.RecordError(span, err)
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"assertion": q.name,
			}).Error("failed to run data-quality assertion")
			return validation.Report{}, repositories.Internal("failed to run assertion " + q.name)
		}
		results = append(results, validation.Count(scope, q.name, failing))
	}

	report := validation.Report{Results: results}
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"assertions": len(results),
		"failed":     len(report.Failed()),
	}).Debug("Ran store assertions")
	return report, nil
}
