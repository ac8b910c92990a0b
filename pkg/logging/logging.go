// Package logging builds the service logger: zap underneath, ectologger on top.
package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	AppName string
	Level   string
	Pretty  bool
}

// New returns the ectologger used across the service and the zap logger
// behind it, so the caller can Sync on shutdown.
func New(cfg Config) (ectologger.Logger, *zap.Logger, error) {
	zapLogger, err := ZapConfig(cfg).Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.AppName != "" {
		zapLogger = zapLogger.With(zap.String("service", cfg.AppName))
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), zapLogger, nil
}

// ZapConfig is the development config with colored levels when Pretty is set,
// the production JSON config otherwise.
func ZapConfig(cfg Config) zap.Config {
	var zc zap.Config
	if cfg.Pretty {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	return zc
}

// ParseLevel maps a level name to zap, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}
