package adapters

import (
	"log"
)

// PrintLoggerAdapter implements LoggerAdapter using standard log package
type PrintLoggerAdapter struct {
	level LogLevel
}

// NewPrintLoggerAdapter creates a new print logger with the specified level
func NewPrintLoggerAdapter(level LogLevel) *PrintLoggerAdapter {
	return &PrintLoggerAdapter{level: level}
}

func (p *PrintLoggerAdapter) Debug(message string, args ...any) {
	if enabled(p.level, LogLevelDebug) {
		log.Printf("[DEBUG] [Tidal] "+message, args...)
	}
}

func (p *PrintLoggerAdapter) Info(message string, args ...any) {
	if enabled(p.level, LogLevelInfo) {
		log.Printf("[INFO] [Tidal] "+message, args...)
	}
}

func (p *PrintLoggerAdapter) Warn(message string, args ...any) {
	if enabled(p.level, LogLevelWarn) {
		log.Printf("[WARN] [Tidal] "+message, args...)
	}
}

func (p *PrintLoggerAdapter) Error(message string, args ...any) {
	if enabled(p.level, LogLevelError) {
		log.Printf("[ERROR] [Tidal] "+message, args...)
	}
}
