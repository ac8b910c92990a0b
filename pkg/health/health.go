// Package health provides the health check endpoints of the fern service.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LastRun summarizes the most recent pipeline run.
type LastRun struct {
	RunID            string           `json:"run_id"`
	Status           models.RunStatus `json:"status"`
	FinishedAt       *time.Time       `json:"finished_at,omitempty"`
	FactRows         int              `json:"fact_rows"`
	FailedAssertions int              `json:"failed_assertions"`
}

// Response represents a health check response
type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	LastRun    *LastRun               `json:"last_run,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

type check struct {
	fn       CheckFunc
	required bool
}

// Checker provides health check functionality
type Checker struct {
	checks    map[string]check
	startTime time.Time
	version   string
	mu        sync.RWMutex
	ready     bool
	lastRun   *LastRun
}

// NewChecker creates a new health checker
func NewChecker(version string) *Checker {
	return &Checker{
		checks:    make(map[string]check),
		startTime: time.Now(),
		version:   version,
	}
}

// AddCheck registers a dependency probe. A failing required probe makes the
// service unhealthy; an optional one only degrades it.
func (c *Checker) AddCheck(name string, fn CheckFunc, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, required: required}
}

// SetReady marks the service as ready to receive traffic
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// IsReady returns whether the service is ready
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// RecordRun stores the outcome of the latest run for the health report.
func (c *Checker) RecordRun(run models.PipelineRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun = &LastRun{
		RunID:            run.RunID.String(),
		Status:           run.Status,
		FinishedAt:       run.FinishedAt,
		FactRows:         run.FactRows,
		FailedAssertions: run.FailedAssertions,
	}
}

func (c *Checker) lastRunSnapshot() *LastRun {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRun == nil {
		return nil
	}
	snapshot := *c.lastRun
	return &snapshot
}

// LivenessHandler reports that the process is up.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Response{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		ReportedAt: time.Now(),
	})
}

// ReadinessHandler reports whether start-up finished and dependencies answer.
func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, Response{
			Status:     StatusUnhealthy,
			Version:    c.version,
			ReportedAt: time.Now(),
			Checks: map[string]CheckResult{
				"startup": {Status: StatusUnhealthy, Message: "service is still starting up"},
			},
		})
	}
	return c.HealthHandler(ctx)
}

// HealthHandler returns a detailed health check handler
func (c *Checker) HealthHandler(ctx echo.Context) error {
	checks := c.runChecks(ctx.Request().Context())
	overallStatus := calculateOverallStatus(checks)

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return ctx.JSON(statusCode, Response{
		Status:     overallStatus,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     checks,
		LastRun:    c.lastRunSnapshot(),
		ReportedAt: time.Now(),
	})
}

func (c *Checker) runChecks(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	registered := make(map[string]check, len(c.checks))
	for name, chk := range c.checks {
		registered[name] = chk
	}
	c.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]CheckResult, len(names))
	for _, name := range names {
		results[name] = runCheck(ctx, registered[name])
	}
	return results
}

func runCheck(ctx context.Context, chk check) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := chk.fn(ctx); err != nil {
		status := StatusDegraded
		if chk.required {
			status = StatusUnhealthy
		}
		return CheckResult{
			Status:  status,
			Message: err.Error(),
			Latency: time.Since(start).String(),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Latency: time.Since(start).String(),
	}
}

func calculateOverallStatus(checks map[string]CheckResult) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// RegisterRoutes registers health check routes under /api/v1
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	health := e.Group("/api/v1/health")

	health.GET("", c.HealthHandler)
	health.GET("/live", c.LivenessHandler)
	health.GET("/ready", c.ReadinessHandler)
}
