package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	pkgerrors "github.com/pkg/errors"
)

var upMigration = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// migrateLogger routes golang-migrate output to the service logger.
type migrateLogger struct {
	logger ectologger.Logger
}

func (l migrateLogger) Verbose() bool { return true }

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	// Version pins the target version; zero migrates to the latest.
	Version uint
	// Force marks the schema clean at this version before migrating.
	Force int
	// AutoRollback forces a dirty schema back to the version it started from.
	AutoRollback bool
}

// MigrationStatus describes the schema version of a database.
type MigrationStatus struct {
	Version   uint `json:"version"`
	Dirty     bool `json:"dirty"`
	Available int  `json:"available"`
}

// Current reports whether the schema is clean at the newest available version.
func (s MigrationStatus) Current() bool {
	return !s.Dirty && int(s.Version) == s.Available
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{config: config, logger: logger}
}

// folder returns the migration folder as an absolute path.
func (ms *MigrationService) folder() (string, error) {
	folder := ms.config.MigrationFolderPath
	if !filepath.IsAbs(folder) {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return "", pkgerrors.Wrapf(err, "failed to resolve migration folder %s", folder)
		}
		folder = abs
	}
	if _, err := os.Stat(folder); err != nil {
		return "", pkgerrors.Wrapf(err, "migration folder %s does not exist", folder)
	}
	return folder, nil
}

func (ms *MigrationService) open(db DB, databaseName string) (*migrate.Migrate, string, error) {
	folder, err := ms.folder()
	if err != nil {
		return nil, "", err
	}
	driver, err := postgres.WithInstance(db.SQLDB(), &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "failed to create postgres migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = migrateLogger{logger: ms.logger}
	return m, folder, nil
}

// MigratePostgres brings the bronze, silver, gold and ops schemas up to the
// configured version.
func (ms *MigrationService) MigratePostgres(db DB, databaseName string) error {
	m, _, err := ms.open(db, databaseName)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to prepare migrations")
		return err
	}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force schema to version %d", ms.config.Force)
			return pkgerrors.Wrapf(err, "failed to force schema to version %d", ms.config.Force)
		}
	}

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Warn("Failed to read schema version before migrating")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}

	switch {
	case err == nil:
		to, _, _ := m.Version()
		ms.logger.WithFields(map[string]any{
			"from":        from,
			"to":          to,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Applied database migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.WithField("version", from).Info("Schema is up to date")
		return nil
	default:
		return ms.recover(m, err, from)
	}
}

// recover logs a failed migration and, when enabled, forces a dirty schema
// back to the version it started from. The migration error is always returned.
func (ms *MigrationService) recover(m *migrate.Migrate, cause error, from uint) error {
	ms.logger.WithError(cause).Error("Migration failed")

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Error("Failed to read schema version after failed migration")
		return cause
	}

	if dirty && ms.config.AutoRollback {
		target := int(from)
		if target == 0 && version > 0 {
			target = int(version) - 1
		}
		ms.logger.Warnf("Schema is dirty at version %d. Forcing back to version %d", version, target)
		if err := m.Force(target); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force schema to version %d", target)
			return err
		}
	}

	return pkgerrors.Wrapf(cause, "failed to apply migrations (dirty=%t, version=%d)", dirty, version)
}

// Status reports the applied schema version against the newest migration
// in the folder.
func (ms *MigrationService) Status(db DB, databaseName string) (MigrationStatus, error) {
	m, folder, err := ms.open(db, databaseName)
	if err != nil {
		return MigrationStatus{}, err
	}

	available, err := LatestVersion(folder)
	if err != nil {
		return MigrationStatus{}, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, pkgerrors.Wrap(err, "failed to read schema version")
	}
	return MigrationStatus{Version: version, Dirty: dirty, Available: available}, nil
}

// LatestVersion returns the highest up-migration version in folderPath.
func LatestVersion(folderPath string) (int, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := upMigration.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return 0, err
		}
		versions = append(versions, version)
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found in %s", folderPath)
	}
	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
