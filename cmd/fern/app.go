package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/canonicaljob"
	"github.com/Ramsey-B/fern/internal/repositories/pipelinerun"
	"github.com/Ramsey-B/fern/internal/repositories/quality"
	"github.com/Ramsey-B/fern/internal/repositories/rawjob"
	"github.com/Ramsey-B/fern/internal/repositories/warehouse"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/runlock"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var errNotConnected = errors.New("database not connected")

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg       *config.Config
	logger    ectologger.Logger
	zapLogger *zap.Logger
	startup   *startup.Startup

	db       database.DB
	locker   *runlock.Locker
	producer *events.Producer

	stopTracing func(context.Context) error
}

type appOptions struct {
	migrate bool
	redis   bool
	kafka   bool
}

// newApp loads configuration and logging. Nothing is connected until start.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, zapLogger, err := logging.New(logging.Config{
		AppName: cfg.AppName,
		Level:   cfg.LogLevel,
		Pretty:  cfg.PrettyLogs,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		zapLogger:   zapLogger,
		startup:     startup.NewStartup(logger, cfg.StartupMaxAttempts),
		stopTracing: tracing.Setup(cfg.AppName, tracing.NewLogExporter(logger)),
	}, nil
}

// start brings up the database and, as requested, migrations, the run lock and
// the event producer.
func (a *app) start(ctx context.Context, opts appOptions) error {
	a.startup.AddDependency(startup.Func{
		Name: "database",
		StartFn: func(ctx context.Context) error {
			db, err := database.Connect(ctx, database.PoolConfig{
				Driver:          a.cfg.DatabaseDriver,
				DSN:             a.cfg.DatabaseDSN(),
				MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
			}, a.logger)
			if err != nil {
				return err
			}
			a.db = db
			return nil
		},
		StopFn: func(context.Context) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	})

	if opts.migrate {
		a.startup.AddDependency(startup.Func{
			Name:     "migrations",
			Requires: []string{"database"},
			StartFn:  func(context.Context) error { return a.migrate() },
		})
	}

	if opts.redis && a.cfg.RedisEnabled() {
		a.startup.AddDependency(startup.Func{
			Name: "redis",
			StartFn: func(ctx context.Context) error {
				locker, err := runlock.NewLocker(ctx, runlock.Config{
					Host:     a.cfg.RedisHost,
					Port:     a.cfg.RedisPort,
					Password: a.cfg.RedisPassword,
					DB:       a.cfg.RedisDB,
					TTL:      a.cfg.RunLockTTL,
				}, a.logger)
				if err != nil {
					return err
				}
				a.locker = locker
				return nil
			},
			StopFn: func(context.Context) error {
				if a.locker == nil {
					return nil
				}
				return a.locker.Close()
			},
		})
	}

	if opts.kafka && a.cfg.KafkaEnabled() {
		a.startup.AddDependency(startup.Func{
			Name: "kafka",
			StartFn: func(context.Context) error {
				a.producer = events.NewProducer(events.Config{
					Brokers:      events.ParseBrokers(strings.Join(a.cfg.KafkaBrokers, ",")),
					Topic:        a.cfg.KafkaRunTopic,
					RequiredAcks: a.cfg.KafkaRequiredAcks,
					Compression:  a.cfg.KafkaCompression,
				}, a.logger)
				return nil
			},
			StopFn: func(context.Context) error {
				if a.producer == nil {
					return nil
				}
				return a.producer.Close()
			},
		})
	}

	return a.startup.Start(ctx)
}

func (a *app) migrate() error {
	if a.db == nil {
		return errNotConnected
	}
	return a.migrationService().MigratePostgres(a.db, a.cfg.DatabaseName)
}

func (a *app) migrationService() *database.MigrationService {
	return database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
}

// close stops every started dependency and flushes telemetry and logs.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to stop dependencies")
	}
	if err := a.stopTracing(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to flush traces")
	}
	_ = a.zapLogger.Sync()
}

func (a *app) rawRepository() *rawjob.Repository {
	return rawjob.NewRepository(a.db, a.logger, a.cfg.DatabaseInsertBatchSize)
}

func (a *app) ingester() (*ingest.Ingester, error) {
	api, err := ingest.NewGreenhouseClient(ingest.GreenhouseConfig{
		BoardURL: a.cfg.GreenhouseBoardURL,
		JobsPath: a.cfg.GreenhouseJobsPath,
		Timeout:  a.cfg.GreenhouseTimeout,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	history := ingest.NewHistoryReader(a.cfg.HistoryCSVPath, a.logger)
	return ingest.NewIngester(api, history, a.rawRepository(), a.logger), nil
}

// runner wires the pipeline against the store. observer may be nil.
func (a *app) runner(observer func(models.PipelineRun)) (*pipeline.Runner, error) {
	ingester, err := a.ingester()
	if err != nil {
		return nil, err
	}

	deps := pipeline.Dependencies{
		Raw:       a.rawRepository(),
		Ingester:  ingester,
		Canonical: canonicaljob.NewRepository(a.db, a.logger, a.cfg.DatabaseInsertBatchSize),
		Warehouse: warehouse.NewRepository(a.db, a.logger, a.cfg.DatabaseInsertBatchSize),
		Tx:        a.db,
		Checker:   quality.NewRepository(a.db, a.logger),
		RunLog:    pipelinerun.NewRepository(a.db, a.logger),
		Observer:  observer,
	}
	// typed nils must not reach the optional interfaces
	if a.locker != nil {
		deps.Locker = a.locker
	}
	if a.producer != nil {
		deps.Events = a.producer
	}

	return pipeline.NewRunner(deps, pipeline.BuildOptions{
		OrganizationName: a.cfg.OrganizationName,
		Anchor:           a.cfg.AnchorDate(),
		HorizonYears:     a.cfg.CalendarHorizonYears,
	}, a.logger)
}
