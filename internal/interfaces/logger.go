package interfaces

// Logger defines a generic key/value logging interface.
type Logger interface {
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
	SetLevel(level string)
	// WithFields returns a child logger that adds fields to every entry.
	WithFields(fields map[string]interface{}) Logger
}
