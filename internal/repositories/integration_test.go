package repositories_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/canonicaljob"
	"github.com/Ramsey-B/fern/internal/repositories/pipelinerun"
	"github.com/Ramsey-B/fern/internal/repositories/quality"
	"github.com/Ramsey-B/fern/internal/repositories/rawjob"
	"github.com/Ramsey-B/fern/internal/repositories/warehouse"
	"github.com/Ramsey-B/fern/internal/testsupport"
	"github.com/Ramsey-B/fern/pkg/calendar"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/dimensions"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/validation"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func strPtr(s string) *string {
	return &s
}

func setupDatabase(t *testing.T) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := testsupport.StartPostgres(t)
	logger := testLogger()

	db, err := database.Connect(context.Background(), database.PoolConfig{DSN: pg.DSN()}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	folder, err := filepath.Abs(filepath.Join("..", "..", "db", "pg"))
	require.NoError(t, err)
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: folder})
	require.NoError(t, migrations.MigratePostgres(db, testsupport.PostgresDB))

	status, err := migrations.Status(db, testsupport.PostgresDB)
	require.NoError(t, err)
	require.True(t, status.Current(), "schema not current: %+v", status)
	return db
}

// stagingIngester stages rows and hands back the feed-decoded copy, the way a
// fresh ingest does.
type stagingIngester struct {
	repo *rawjob.Repository
	rows models.RawSet
}

func (s stagingIngester) Ingest(ctx context.Context) (models.RawSet, error) {
	if err := s.repo.ReplaceRaw(ctx, s.rows); err != nil {
		return models.RawSet{}, err
	}
	return s.rows, nil
}

func stagedRows() models.RawSet {
	// late evening at the feed's offset, already the next day in UTC
	updated := time.Date(2026, time.October, 1, 22, 30, 0, 0, time.FixedZone("EDT", -4*60*60))
	return models.RawSet{
		API: []models.APIJob{
			{
				ID:           7001,
				Title:        "Platform Engineer",
				AbsoluteURL:  strPtr("https://boards.greenhouse.io/offerzen/jobs/7001"),
				LocationName: strPtr("Cape Town"),
				Departments:  []models.NamedEntity{{ID: 3, Name: "ENGINEERING"}},
				Offices:      []models.NamedEntity{{ID: 9, Name: "Cape Town"}},
				UpdatedAt:    &updated,
			},
			{ID: 7002, Title: "Account Executive", LocationName: strPtr("Remote"), UpdatedAt: &updated},
		},
		History: []models.HistoryJob{
			{JobID: 101, Title: "Recruiter", Department: strPtr("OPERATIONS"), Location: strPtr("South africa"), OpenDate: strPtr("03/14/2021"), CloseDate: strPtr("2021-04-13")},
			{JobID: 102, Title: "Designer", Department: strPtr("  "), Location: strPtr("Remote"), OpenDate: strPtr("2021-03-14")},
			{JobID: 103, Title: "Analyst", Department: strPtr("Finance"), Location: strPtr("Johannesburg"), OpenDate: strPtr("not-a-date"), AbsoluteURL: strPtr("  ")},
		},
	}
}

func TestRepositories_Integration(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	logger := testLogger()

	rawRepo := rawjob.NewRepository(db, logger, 2)
	canonicalRepo := canonicaljob.NewRepository(db, logger, 2)
	warehouseRepo := warehouse.NewRepository(db, logger, 500)
	runRepo := pipelinerun.NewRepository(db, logger)
	qualityRepo := quality.NewRepository(db, logger)

	t.Run("staging round trip keeps order", func(t *testing.T) {
		require.NoError(t, rawRepo.ReplaceRaw(ctx, stagedRows()))
		// replacing again must not append
		require.NoError(t, rawRepo.ReplaceRaw(ctx, stagedRows()))

		raw, err := rawRepo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, raw.API, 2)
		require.Len(t, raw.History, 3)
		assert.Equal(t, int64(7001), raw.API[0].ID)
		assert.Equal(t, []models.NamedEntity{{ID: 3, Name: "ENGINEERING"}}, raw.API[0].Departments)
		assert.Empty(t, raw.API[1].Departments)
		assert.Equal(t, "not-a-date", *raw.History[2].OpenDate)

		api, history, err := rawRepo.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), api)
		assert.Equal(t, int64(3), history)
	})

	runner, err := pipeline.NewRunner(pipeline.Dependencies{
		Raw:       rawRepo,
		Canonical: canonicalRepo,
		Warehouse: warehouseRepo,
		Tx:        db,
		Checker:   qualityRepo,
		RunLog:    runRepo,
	}, pipeline.BuildOptions{}, logger)
	require.NoError(t, err)

	opts := pipeline.RunOptions{SkipIngest: true, RunDate: time.Date(2026, time.October, 16, 6, 0, 0, 0, time.UTC)}

	var first models.Star
	t.Run("first run builds every layer", func(t *testing.T) {
		report, err := runner.Run(ctx, opts)
		require.NoError(t, err)
		assert.False(t, report.Failed(), "failed: %+v", report.Validation.Failed())
		assert.Equal(t, 5, report.Run.CanonicalRows)

		jobs, err := canonicalRepo.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 5)
		assert.Equal(t, models.SourceAPI, jobs[0].Source)
		assert.Equal(t, "Engineering", jobs[0].Department)
		assert.Equal(t, models.UnknownValue, jobs[1].Department)
		assert.Equal(t, "South Africa", jobs[2].Location)
		assert.Nil(t, jobs[4].OpenDate)
		assert.Nil(t, jobs[4].AbsoluteURL)

		counts, err := warehouseRepo.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), counts[warehouse.FactTable])
		assert.Equal(t, int64(4), counts[warehouse.DepartmentTable])
		assert.Equal(t, int64(4), counts[warehouse.LocationTable])

		first, err = warehouseRepo.Load(ctx)
		require.NoError(t, err)

		latest, err := runRepo.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, report.Run.RunID, latest.RunID)
		assert.Equal(t, models.RunStatusSucceeded, latest.Status)
		assert.NotNil(t, latest.FinishedAt)

		results, err := runRepo.Results(ctx, latest.RunID)
		require.NoError(t, err)
		assert.Len(t, results, len(report.Validation.Results))
	})

	t.Run("second run is identical", func(t *testing.T) {
		_, err := runner.Run(ctx, opts)
		require.NoError(t, err)

		second, err := warehouseRepo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		count, err := canonicalRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)

		jobs, err := canonicalRepo.List(ctx)
		require.NoError(t, err)
		api, history, err := rawRepo.Counts(ctx)
		require.NoError(t, err)
		report := validation.Check(validation.Input{
			RawRows:     int(api + history),
			Jobs:        jobs,
			Departments: dimensions.FromRows(models.DimensionDepartment, second.Departments),
			Locations:   dimensions.FromRows(models.DimensionLocation, second.Locations),
			Calendar:    calendar.FromDays(second.Calendar),
			Facts:       second.Facts,
		})
		assert.True(t, report.Passed(), "failed: %+v", report.Failed())
	})

	t.Run("ingest run matches a rebuild from staged rows", func(t *testing.T) {
		ingesting, err := pipeline.NewRunner(pipeline.Dependencies{
			Raw:       rawRepo,
			Ingester:  stagingIngester{repo: rawRepo, rows: stagedRows()},
			Canonical: canonicalRepo,
			Warehouse: warehouseRepo,
			Tx:        db,
			Checker:   qualityRepo,
			RunLog:    runRepo,
		}, pipeline.BuildOptions{}, logger)
		require.NoError(t, err)

		_, err = ingesting.Run(ctx, pipeline.RunOptions{RunDate: opts.RunDate})
		require.NoError(t, err)
		ingested, err := warehouseRepo.Load(ctx)
		require.NoError(t, err)
		ingestedJobs, err := canonicalRepo.List(ctx)
		require.NoError(t, err)

		_, err = runner.Run(ctx, opts)
		require.NoError(t, err)
		rebuilt, err := warehouseRepo.Load(ctx)
		require.NoError(t, err)
		rebuiltJobs, err := canonicalRepo.List(ctx)
		require.NoError(t, err)

		assert.Equal(t, ingested, rebuilt)
		assert.Equal(t, ingestedJobs, rebuiltJobs)
		assert.Equal(t, first, rebuilt)
		require.NotNil(t, rebuilt.Facts[0].OpenDateKey)
		assert.Equal(t, 20261002, *rebuilt.Facts[0].OpenDateKey)
	})

	t.Run("quality check flags tampering", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `UPDATE gold.fact_jobs SET days_to_fill = -1 WHERE days_to_fill IS NOT NULL`)
		require.NoError(t, err)

		report, err := qualityRepo.Check(ctx)
		require.NoError(t, err)
		require.Len(t, report.Failed(), 1)
		assert.Equal(t, "days_to_fill_non_negative", report.Failed()[0].Name)
		assert.Equal(t, int64(1), report.Failed()[0].FailingRows)
	})

	t.Run("title case follows letter runs", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `UPDATE gold.fact_jobs SET days_to_fill = 30 WHERE days_to_fill = -1`)
		require.NoError(t, err)

		tests := []struct {
			name    string
			failing bool
		}{
			{"3D Printing", false},
			{"O'Neil Street", false},
			{"3d Printing", true},
			{"Data engineering", true},
			{"SALES", true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := db.ExecContext(ctx, `INSERT INTO gold.dim_department (department_key, department_name) VALUES (9999, $1)`, tt.name)
				require.NoError(t, err)
				t.Cleanup(func() {
					_, _ = db.ExecContext(ctx, `DELETE FROM gold.dim_department WHERE department_key = 9999`)
				})

				report, err := qualityRepo.Check(ctx)
				require.NoError(t, err)
				if !tt.failing {
					assert.True(t, report.Passed(), "failed: %+v", report.Failed())
					return
				}
				require.Len(t, report.Failed(), 1)
				assert.Equal(t, validation.DimensionTitleCase, report.Failed()[0].Name)
				assert.Equal(t, int64(1), report.Failed()[0].FailingRows)
			})
		}
	})

	t.Run("lookups", func(t *testing.T) {
		jobs, err := canonicalRepo.GetByJobID(ctx, 101)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "Recruiter", jobs[0].Title)

		_, err = canonicalRepo.GetByJobID(ctx, 999999)
		require.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}
