// Package logger provides the process-wide structured logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init initializes the global logger for the given environment.
// "production" logs JSON, "test" discards output so test runs stay
// readable, and everything else gets a console encoder.
func Init(env string) {
	once.Do(func() {
		var base *zap.Logger

		switch env {
		case "production":
			cfg := zap.NewProductionConfig()
			cfg.InitialFields = map[string]interface{}{"service": "tally-api"}
			var err error
			base, err = cfg.Build()
			if err != nil {
				base = zap.NewNop()
			}
		case "test":
			base = zap.NewNop()
		default:
			var err error
			base, err = zap.NewDevelopment()
			if err != nil {
				base = zap.NewNop()
			}
		}

		sugar = base.Sugar()
	})
}

// Get returns the global sugared logger, initializing a development
// logger if Init has not been called.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
