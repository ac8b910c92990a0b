package main

import (
	"context"

	"github.com/Ramsey-B/fern/internal/repositories/canonicaljob"
	"github.com/Ramsey-B/fern/internal/repositories/warehouse"
	"github.com/Ramsey-B/fern/pkg/calendar"
	"github.com/Ramsey-B/fern/pkg/dimensions"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// checkStoredModel reads the persisted layers back and runs the model
// assertions over them.
func checkStoredModel(ctx context.Context, a *app) (validation.Report, error) {
	api, history, err := a.rawRepository().Counts(ctx)
	if err != nil {
		return validation.Report{}, err
	}
	jobs, err := canonicaljob.NewRepository(a.db, a.logger, a.cfg.DatabaseInsertBatchSize).List(ctx)
	if err != nil {
		return validation.Report{}, err
	}
	star, err := warehouse.NewRepository(a.db, a.logger, a.cfg.DatabaseInsertBatchSize).Load(ctx)
	if err != nil {
		return validation.Report{}, err
	}

	return validation.Check(validation.Input{
		RawRows:     int(api + history),
		Jobs:        jobs,
		Departments: dimensions.FromRows(models.DimensionDepartment, star.Departments),
		Locations:   dimensions.FromRows(models.DimensionLocation, star.Locations),
		Calendar:    calendar.FromDays(star.Calendar),
		Facts:       star.Facts,
	}), nil
}
