package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/repositories/quality"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/validation"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.start(cmd.Context(), appOptions{migrate: true}); err != nil {
				return err
			}
			status, err := a.migrationService().Status(a.db, a.cfg.DatabaseName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d of %d (dirty=%t)\n", status.Version, status.Available, status.Dirty)
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch both raw sources and replace the staging tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.start(cmd.Context(), appOptions{migrate: true}); err != nil {
				return err
			}
			ingester, err := a.ingester()
			if err != nil {
				return err
			}
			raw, err := ingester.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "staged %d api rows and %d history rows\n", len(raw.API), len(raw.History))
			return nil
		},
	}
}

type runOptions struct {
	skipIngest bool
	runDate    string
	jsonOutput bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full refresh: ingest, rebuild every layer, validate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runOpts := pipeline.RunOptions{SkipIngest: opts.skipIngest}
			if opts.runDate != "" {
				runDate, err := time.Parse("2006-01-02", opts.runDate)
				if err != nil {
					return withCode(exitError, fmt.Errorf("invalid --run-date: %w", err))
				}
				runOpts.RunDate = runDate
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.start(cmd.Context(), appOptions{migrate: true, redis: true, kafka: true}); err != nil {
				return err
			}
			runner, err := a.runner(nil)
			if err != nil {
				return err
			}
			report, err := runner.Run(cmd.Context(), runOpts)
			if err != nil {
				return err
			}

			if err := printReport(cmd.OutOrStdout(), report.Run, report.Validation, opts.jsonOutput); err != nil {
				return err
			}
			if report.Failed() {
				return withCode(exitAssertions, fmt.Errorf("%d data-quality assertions failed", report.Run.FailedAssertions))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.skipIngest, "skip-ingest", false, "Rebuild from the rows already staged")
	cmd.Flags().StringVar(&opts.runDate, "run-date", "", "Run date (YYYY-MM-DD) for loaded_at and the calendar horizon")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run report as JSON")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the data-quality assertions over the stored tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.start(cmd.Context(), appOptions{}); err != nil {
				return err
			}
			report, err := quality.NewRepository(a.db, a.logger).Check(cmd.Context())
			if err != nil {
				return err
			}
			stored, err := checkStoredModel(cmd.Context(), a)
			if err != nil {
				return err
			}
			report = stored.Merge(report)

			if err := printValidation(cmd.OutOrStdout(), report, jsonOutput); err != nil {
				return err
			}
			if !report.Passed() {
				return withCode(exitAssertions, fmt.Errorf("%d data-quality assertions failed", len(report.Failed())))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the results as JSON")
	return cmd
}

func printReport(w io.Writer, run models.PipelineRun, report validation.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run     models.PipelineRun       `json:"run"`
			Results []models.AssertionResult `json:"results"`
		}{run, report.Results})
	}

	fmt.Fprintf(w, "run %s %s\n", run.RunID, run.Status)
	fmt.Fprintf(w, "  raw: %d api, %d history\n", run.RawAPIRows, run.RawHistoryRows)
	fmt.Fprintf(w, "  canonical: %d  facts: %d\n", run.CanonicalRows, run.FactRows)
	fmt.Fprintf(w, "  departments: %d  locations: %d  calendar days: %d\n", run.DepartmentRows, run.LocationRows, run.CalendarRows)
	fmt.Fprintf(w, "  field issues: %d\n", run.FieldIssues)
	return printValidation(w, report, false)
}

func printValidation(w io.Writer, report validation.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Results)
	}

	failed := report.Failed()
	fmt.Fprintf(w, "assertions: %d run, %d failed\n", len(report.Results), len(failed))
	for _, result := range failed {
		fmt.Fprintf(w, "  FAIL %s.%s: %s\n", result.Scope, result.Name, result.Message)
	}
	return nil
}
