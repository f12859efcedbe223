// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	mu         sync.RWMutex
	sugar      *zap.SugaredLogger
	baseLogger *zap.Logger
)

// Init initializes the package-level logger.
// Debug selects zap's human-readable development config.
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	mu.Lock()
	baseLogger = zapLogger
	sugar = zapLogger.Sugar()
	mu.Unlock()
	return nil
}

// SetLogger replaces the package logger. Tests use it with zap.NewNop or zaptest.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = l.WithOptions(zap.AddCallerSkip(1))
	sugar = baseLogger.Sugar()
}

// Logger returns the sugared logger, creating a production logger on first use.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	l := sugar
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if sugar == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		sugar = baseLogger.Sugar()
	}
	return sugar
}

// Named returns a child logger tagged with the given component name.
// The caller-skip applied for the package helpers is undone.
func Named(name string) *zap.SugaredLogger {
	return Logger().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(name)
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func Debugw(msg string, keysAndValues ...any) {
	Logger().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...any) {
	Logger().Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...any) {
	Logger().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...any) {
	Logger().Errorw(msg, keysAndValues...)
}

// Fatalw logs and exits the process.
func Fatalw(msg string, keysAndValues ...any) {
	Logger().Fatalw(msg, keysAndValues...)
}
