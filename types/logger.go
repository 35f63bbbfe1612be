package types

// Logger is the structured logger used throughout meridian.
//
// Methods take a message followed by alternating key/value pairs. The
// method set matches the "w" family of zap.SugaredLogger; see
// contrib/logging/zaplog for an adapter.
//
// Implementations MUST be safe for concurrent use.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, keysAndValues ...any)

	// Info logs an informational message.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error.
	Error(msg string, keysAndValues ...any)
}

// LoggerSetter is implemented by components that accept the logger of the
// component that owns them. The router calls SetLogger on its selection
// policy and topology source during construction.
type LoggerSetter interface {
	SetLogger(l Logger)
}
