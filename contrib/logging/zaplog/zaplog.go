// Package zaplog adapts go.uber.org/zap to the meridian Logger interface.
//
// Example:
//
//	logger, _ := zap.NewProduction()
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithLogger(zaplog.New(logger)),
//	)
package zaplog

import (
	"go.uber.org/zap"

	"github.com/arloliu/meridian/types"
)

// Logger wraps a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ types.Logger = (*Logger)(nil)

// New creates a Logger from a zap logger.
//
// The caller skip is adjusted so zap reports the meridian call site.
//
// Parameters:
//   - logger: The zap logger (nil uses zap.NewNop())
//
// Returns:
//   - *Logger: A meridian logger
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Logger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewSugared creates a Logger from a SugaredLogger.
func NewSugared(sugar *zap.SugaredLogger) *Logger {
	return &Logger{sugar: sugar}
}

// Named returns a child logger with name appended to the logger name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
