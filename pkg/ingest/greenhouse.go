package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmespath/go-jmespath"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum board feed size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// GreenhouseConfig configures the job-board client.
type GreenhouseConfig struct {
	BoardURL string
	// JobsPath is a JMESPath expression selecting the jobs array in the feed.
	JobsPath string
	Timeout  time.Duration
}

// GreenhouseClient reads the live job-board feed.
type GreenhouseClient struct {
	client   *http.Client
	url      string
	jobsPath *jmespath.JMESPath
	logger   ectologger.Logger
}

type greenhouseLocation struct {
	Name *string `json:"name"`
}

type greenhouseJob struct {
	ID            int64                `json:"id"`
	InternalJobID *int64               `json:"internal_job_id"`
	Title         string               `json:"title"`
	AbsoluteURL   *string              `json:"absolute_url"`
	Location      *greenhouseLocation  `json:"location"`
	Content       *string              `json:"content"`
	Departments   []models.NamedEntity `json:"departments"`
	Offices       []models.NamedEntity `json:"offices"`
	UpdatedAt     *time.Time           `json:"updated_at"`
}

func NewGreenhouseClient(cfg GreenhouseConfig, logger ectologger.Logger) (*GreenhouseClient, error) {
	jobsPath := cfg.JobsPath
	if jobsPath == "" {
		jobsPath = "jobs"
	}
	compiled, err := jmespath.Compile(jobsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid jobs expression %q: %w", jobsPath, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &GreenhouseClient{
		client:   &http.Client{Timeout: timeout},
		url:      cfg.BoardURL,
		jobsPath: compiled,
		logger:   logger,
	}, nil
}

// FetchJobs downloads the feed and returns every job it lists, in feed order.
func (c *GreenhouseClient) FetchJobs(ctx context.Context) ([]models.APIJob, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.GreenhouseClient.FetchJobs")
	defer span.End()

	body, err := c.get(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	var document any
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("failed to decode board feed: %w", err)
	}

	selected, err := c.jobsPath.Search(document)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs from board feed: %w", err)
	}
	if _, ok := selected.([]any); !ok {
		return nil, fmt.Errorf("board feed has no jobs array")
	}

	encoded, err := json.Marshal(selected)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode jobs: %w", err)
	}
	var raw []greenhouseJob
	if err := json.Unmarshal(encoded, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}

	jobs := make([]models.APIJob, len(raw))
	for i, job := range raw {
		jobs[i] = models.APIJob{
			ID:            job.ID,
			InternalJobID: job.InternalJobID,
			Title:         job.Title,
			AbsoluteURL:   job.AbsoluteURL,
			Content:       job.Content,
			Departments:   job.Departments,
			Offices:       job.Offices,
			UpdatedAt:     job.UpdatedAt,
		}
		if job.Location != nil {
			jobs[i].LocationName = job.Location.Name
		}
	}

	tracing.SetRows(span, "raw_jobs_api", len(jobs))
	c.logger.WithContext(ctx).WithFields(map[string]any{
		"url":  c.url,
		"jobs": len(jobs),
	}).Info("Fetched job board feed")
	return jobs, nil
}

func (c *GreenhouseClient) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: GET %s", c.url)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("board feed returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes (max %d)", resp.ContentLength, MaxResponseSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}

	c.logger.WithContext(ctx).Debugf("HTTP GET %s -> %d (%s)", c.url, resp.StatusCode, time.Since(start))
	return body, nil
}
