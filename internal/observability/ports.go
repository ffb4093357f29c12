// Package observability defines the logging and metrics ports every component
// receives through its constructor, plus the factory that builds them from config.
package observability

// Logger defines the interface for structured logging in the application.
// Fields are alternating key/value pairs: logger.Info("done", "files", 3).
type Logger interface {
	// Debug logs verbose diagnostics that are normally filtered out.
	Debug(msg string, fields ...interface{})

	// Info logs informational messages for normal operations.
	Info(msg string, fields ...interface{})

	// Warn logs recoverable conditions: skipped archive entries, missing optional files.
	Warn(msg string, fields ...interface{})

	// Error logs error conditions. Pass the error under the "error" key.
	Error(msg string, fields ...interface{})

	// WithFields returns a new Logger with the given fields added to all subsequent logs.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for recording application metrics.
type Metrics interface {
	// IncrementCounter increments a counter metric by 1.
	IncrementCounter(name string, tags map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	RecordHistogram(name string, value float64, tags map[string]string)

	// RecordGauge records a point-in-time measurement.
	RecordGauge(name string, value float64, tags map[string]string)

	// WithTags returns a new Metrics instance with additional default tags.
	WithTags(tags map[string]string) Metrics
}

// Flusher is implemented by metrics adapters that buffer samples until the
// end of a batch run.
type Flusher interface {
	Flush() error
}
