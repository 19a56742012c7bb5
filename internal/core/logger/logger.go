package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is stamped on every entry.
const ServiceName = "storefront-orders"

var globalLogger *zap.Logger

// Init builds the process logger.
// "production" emits sampled JSON; every other environment gets coloured console output.
func Init(environment string, level string) error {
	logger, err := newConfig(environment, level).Build()
	if err != nil {
		return err
	}

	globalLogger = logger
	return nil
}

func newConfig(environment, level string) zap.Config {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
		// Per message and second: first 20 entries, then every 100th.
		cfg.Sampling = &zap.SamplingConfig{Initial: 20, Thereafter: 100}
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if l, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(l)
	}

	cfg.InitialFields = map[string]interface{}{
		"service":     ServiceName,
		"environment": environment,
	}
	return cfg
}

// Get returns the process logger, or a no-op logger before Init.
func Get() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Named returns the process logger scoped to a component, e.g. "ledger".
func Named(component string) *zap.Logger {
	return Get().Named(component)
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
