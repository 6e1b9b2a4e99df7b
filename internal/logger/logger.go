// Package logger provides the process-wide structured logger.
package logger

import (
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

func initDefaultLogger() {
	loggerOnce.Do(func() {
		if logger == nil {
			cfg := zap.NewProductionConfig()
			cfg.Level.SetLevel(zapcore.InfoLevel)
			var err error
			logger, err = cfg.Build()
			if err != nil {
				logger = zap.NewNop()
			}
		}
	})
}

// Get returns the global logger, initializing a default Info-level one on first use.
func Get() *zap.Logger {
	initDefaultLogger()
	return logger
}

// Named returns a logger for a component name, with hierarchical level filtering applied.
func Named(name string) *zap.Logger {
	base := Get().Named(name)
	level := GetLevelForName(name)
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelFilterCore{Core: core, level: level}
	}))
}

// Environment selects the base zap config profile.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

// LogLevel is the configured minimum level, as read from process config.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Init builds the global logger and the hierarchical per-component level map.
// levels maps a component name (or dotted prefix) to its own minimum level,
// e.g. {"engine": "debug"} lets the transfer engines log at debug while
// every other component keeps the global level.
func Init(environment Environment, logLevel LogLevel, levels map[string]string) {
	var cfg zap.Config
	if environment == EnvironmentDevelopment {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	zapLevel := getZapLevel(string(logLevel))
	cfg.Level.SetLevel(zapLevel)

	var err error
	logger, err = cfg.Build()
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		os.Exit(1)
	}

	InitLevelConfig(levels, zapLevel)
	zap.RedirectStdLog(logger)
}

func getZapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
