package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

type RunReader interface {
	Latest(ctx context.Context) (*models.PipelineRun, error)
	GetByID(ctx context.Context, runID uuid.UUID) (*models.PipelineRun, error)
	Results(ctx context.Context, runID uuid.UUID) ([]models.AssertionResult, error)
}

// RunResponse is a run log entry with its validation results.
type RunResponse struct {
	models.PipelineRun
	Results []models.AssertionResult `json:"results"`
}

type RunHandler struct {
	runs RunReader
}

func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

// RegisterRoutes registers the run log routes under /api/v1/runs
func (h *RunHandler) RegisterRoutes(e *echo.Echo) {
	runs := e.Group("/api/v1/runs")

	runs.GET("/latest", h.Latest)
	runs.GET("/:id", h.Get)
}

// Latest returns the most recent run
func (h *RunHandler) Latest(c echo.Context) error {
	ctx := c.Request().Context()
	run, err := h.runs.Latest(ctx)
	if err != nil {
		return err
	}
	return h.respond(c, run)
}

// Get returns one run by id
func (h *RunHandler) Get(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "run id must be a UUID")
	}
	run, err := h.runs.GetByID(c.Request().Context(), runID)
	if err != nil {
		return err
	}
	return h.respond(c, run)
}

func (h *RunHandler) respond(c echo.Context, run *models.PipelineRun) error {
	results, err := h.runs.Results(c.Request().Context(), run.RunID)
	if err != nil {
		return err
	}
	if results == nil {
		results = []models.AssertionResult{}
	}
	return c.JSON(http.StatusOK, RunResponse{PipelineRun: *run, Results: results})
}
