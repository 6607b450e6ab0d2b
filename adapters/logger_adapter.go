package adapters

import "strings"

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelNone  LogLevel = "NONE"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelNone:  4,
}

// ParseLogLevel maps a case-insensitive level name to a LogLevel.
// Unknown names fall back to LogLevelWarn.
func ParseLogLevel(s string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := logLevelRank[level]; ok {
		return level
	}
	return LogLevelWarn
}

// enabled reports whether a message at level passes the min threshold.
func enabled(min, level LogLevel) bool {
	return logLevelRank[level] >= logLevelRank[min]
}

// LoggerAdapter is an interface for logging.
// Implement this interface to use custom loggers.
// Messages are printf-style format strings.
type LoggerAdapter interface {
	// Debug logs a debug message
	Debug(message string, args ...any)
	// Info logs an info message
	Info(message string, args ...any)
	// Warn logs a warning message
	Warn(message string, args ...any)
	// Error logs an error message
	Error(message string, args ...any)
}
