package logging

// NullLogger discards all log messages. Useful for tests.
type NullLogger struct{}

// NewNullLogger creates a logger that produces no output.
func NewNullLogger() *NullLogger { return &NullLogger{} }

func (l *NullLogger) Verbose(format string, args ...interface{}) {}
func (l *NullLogger) Info(format string, args ...interface{})    {}
func (l *NullLogger) Warn(format string, args ...interface{})    {}
func (l *NullLogger) Error(format string, args ...interface{})   {}
