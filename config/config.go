package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"fern" validate:"required"`
	Port               int    `env:"PORT" env-default:"3004" validate:"gt=0"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"gte=1"`

	// PostgreSQL (bronze, silver, gold and ops schemas)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:"pipeline"`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"recruitment"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseInsertBatchSize       int           `env:"DB_INSERT_BATCH_SIZE" env-default:"500" validate:"gte=1,lte=4000"`

	// Sources
	GreenhouseBoardURL string        `env:"GREENHOUSE_BOARD_URL" env-default:"https://api.greenhouse.io/v1/boards/offerzen/jobs?content=true" validate:"required,url"`
	GreenhouseJobsPath string        `env:"GREENHOUSE_JOBS_PATH" env-default:"jobs" validate:"required"`
	GreenhouseTimeout  time.Duration `env:"GREENHOUSE_TIMEOUT" env-default:"30s"`
	HistoryCSVPath     string        `env:"HISTORY_CSV_PATH" env-default:"data/offerzen_jobs_history_raw.csv" validate:"required"`
	OrganizationName   string        `env:"ORGANIZATION_NAME" env-default:"OfferZen" validate:"required"`

	// Calendar spine
	CalendarAnchorDate   string `env:"CALENDAR_ANCHOR_DATE" env-default:"2015-01-01" validate:"required,datetime=2006-01-02"`
	CalendarHorizonYears int    `env:"CALENDAR_HORIZON_YEARS" env-default:"2" validate:"gte=0"`

	// Run lock (disabled when REDIS_HOST is empty)
	RedisHost     string        `env:"REDIS_HOST" env-default:""`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	RunLockTTL    time.Duration `env:"RUN_LOCK_TTL" env-default:"30m"`

	// Run events (disabled when KAFKA_BROKERS is empty)
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:""`
	KafkaRunTopic     string   `env:"KAFKA_RUN_TOPIC" env-default:"fern.pipeline-runs"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=snappy gzip lz4 zstd none"`

	// Scheduling
	Schedule string `env:"SCHEDULE" env-default:"0 6 * * *" validate:"required"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// AnchorDate returns the first day of the calendar spine.
func (c *Config) AnchorDate() time.Time {
	anchor, err := time.Parse("2006-01-02", c.CalendarAnchorDate)
	if err != nil {
		return time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return anchor
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaBrokers[0] != ""
}
