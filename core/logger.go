package core

// Logger is any leveled logger that can ship errors to an error-reporting
// backend. Implementations accept trailing args of the forms:
// error, map[string]interface{} or a user value to tag the report with.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
