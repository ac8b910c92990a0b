package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// HistoryColumns are the header names the export must carry.
var HistoryColumns = []string{
	"job_id",
	"internal_job_id",
	"absolute_url",
	"title",
	"department",
	"location",
	"company_name",
	"open_date",
	"close_date",
}

// HistoryReader reads the historical job export.
type HistoryReader struct {
	path   string
	logger ectologger.Logger
}

func NewHistoryReader(path string, logger ectologger.Logger) *HistoryReader {
	return &HistoryReader{path: path, logger: logger}
}

// ReadJobs reads the whole export. A malformed job_id or internal_job_id makes
// the file unusable; text fields are trimmed and blanks become null.
func (r *HistoryReader) ReadJobs(ctx context.Context) ([]models.HistoryJob, error) {
	_, span := tracing.StartSpan(ctx, "ingest.HistoryReader.ReadJobs")
	defer span.End()

	file, err := os.Open(r.path)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to open history export: %w", err)
	}
	defer file.Close()

	jobs, err := ParseHistory(file)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}

	tracing.SetRows(span, "raw_jobs_history", len(jobs))
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"path": r.path,
		"jobs": len(jobs),
	}).Info("Read history export")
	return jobs, nil
}

// ParseHistory decodes a header-led CSV stream of historical jobs.
func ParseHistory(in io.Reader) ([]models.HistoryJob, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("history export is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range HistoryColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("history export is missing column %q", name)
		}
	}

	var jobs []models.HistoryJob
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			i := columns[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		jobID, err := strconv.ParseInt(field("job_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid job_id %q", line, field("job_id"))
		}
		internalID, err := optionalInt(field("internal_job_id"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid internal_job_id %q", line, field("internal_job_id"))
		}

		jobs = append(jobs, models.HistoryJob{
			JobID:         jobID,
			InternalJobID: internalID,
			AbsoluteURL:   optionalText(field("absolute_url")),
			Title:         field("title"),
			Department:    optionalText(field("department")),
			Location:      optionalText(field("location")),
			CompanyName:   optionalText(field("company_name")),
			OpenDate:      optionalText(field("open_date")),
			CloseDate:     optionalText(field("close_date")),
		})
	}
	return jobs, nil
}

func optionalInt(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func optionalText(value string) *string {
	return normalizers.NullIfBlank(&value)
}
