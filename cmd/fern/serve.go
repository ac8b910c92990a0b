package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/internal/repositories/pipelinerun"
	"github.com/Ramsey-B/fern/pkg/api"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/scheduler"
)

var version = "dev"

func newServeCmd() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the run log, running the pipeline on schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a, runOnStart)
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Run the pipeline once immediately")
	return cmd
}

func serve(ctx context.Context, a *app, runOnStart bool) error {
	checker := health.NewChecker(version)

	if err := a.start(ctx, appOptions{migrate: true, redis: true, kafka: true}); err != nil {
		return err
	}
	checker.AddCheck("database", a.db.PingContext, true)
	if a.locker != nil {
		checker.AddCheck("redis", a.locker.Ping, false)
	}

	runs := pipelinerun.NewRepository(a.db, a.logger)
	if latest, err := runs.Latest(ctx); err == nil {
		checker.RecordRun(*latest)
	}

	runner, err := a.runner(checker.RecordRun)
	if err != nil {
		return err
	}
	sched, err := scheduler.NewScheduler(a.cfg.Schedule, func(ctx context.Context) error {
		_, err := runner.Run(ctx, pipeline.RunOptions{})
		return err
	}, a.logger)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(a.logger)
	e.Use(otelecho.Middleware(a.cfg.AppName))
	checker.RegisterRoutes(e)
	api.NewRunHandler(runs).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := sched.Start(ctx); err != nil {
		return err
	}
	if runOnStart {
		go sched.Trigger(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Port)
		a.logger.Infof("Serving on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			a.logger.WithError(err).Error("HTTP server failed")
			return err
		}
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Scheduler did not stop cleanly")
	}
	return e.Shutdown(shutdownCtx)
}
