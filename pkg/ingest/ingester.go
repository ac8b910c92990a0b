// Package ingest fetches both raw job sources and stages them wholesale.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrSourceUnavailable means a raw source could not be read in full. Nothing is
// staged or rebuilt when it is returned.
var ErrSourceUnavailable = errors.New("raw source unavailable")

type APISource interface {
	FetchJobs(ctx context.Context) ([]models.APIJob, error)
}

type HistorySource interface {
	ReadJobs(ctx context.Context) ([]models.HistoryJob, error)
}

// RawStore replaces both staging tables at once.
type RawStore interface {
	ReplaceRaw(ctx context.Context, raw models.RawSet) error
}

type Ingester struct {
	api     APISource
	history HistorySource
	store   RawStore
	logger  ectologger.Logger
}

func NewIngester(api APISource, history HistorySource, store RawStore, logger ectologger.Logger) *Ingester {
	return &Ingester{api: api, history: history, store: store, logger: logger}
}

// Fetch reads both sources completely without touching storage.
func (i *Ingester) Fetch(ctx context.Context) (models.RawSet, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Ingester.Fetch")
	defer span.End()

	apiJobs, err := i.api.FetchJobs(ctx)
	if err != nil {
		metrics.RecordSourceFetch(string(models.SourceAPI), "error")
		tracing.RecordError(span, err)
		return models.RawSet{}, fmt.Errorf("%w: api: %v", ErrSourceUnavailable, err)
	}
	metrics.RecordSourceFetch(string(models.SourceAPI), "success")

	historyJobs, err := i.history.ReadJobs(ctx)
	if err != nil {
		metrics.RecordSourceFetch(string(models.SourceHistory), "error")
		tracing.RecordError(span, err)
		return models.RawSet{}, fmt.Errorf("%w: history: %v", ErrSourceUnavailable, err)
	}
	metrics.RecordSourceFetch(string(models.SourceHistory), "success")

	return models.RawSet{API: apiJobs, History: historyJobs}, nil
}

// Ingest fetches both sources and, only when both succeeded, replaces the
// staging tables with their content.
func (i *Ingester) Ingest(ctx context.Context) (models.RawSet, error) {
	raw, err := i.Fetch(ctx)
	if err != nil {
		i.logger.WithContext(ctx).WithError(err).Error("Raw source unavailable; staging left untouched")
		return models.RawSet{}, err
	}

	if err := i.store.ReplaceRaw(ctx, raw); err != nil {
		return models.RawSet{}, fmt.Errorf("failed to stage raw jobs: %w", err)
	}

	i.logger.WithContext(ctx).WithFields(map[string]any{
		"raw_api_rows":     len(raw.API),
		"raw_history_rows": len(raw.History),
	}).Info("Staged raw jobs")
	return raw, nil
}
