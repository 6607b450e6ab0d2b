package adapters

// NoOpLoggerAdapter implements LoggerAdapter with no-op methods.
// Useful in tests and for hosts that want the client silent.
type NoOpLoggerAdapter struct{}

var _ LoggerAdapter = (*NoOpLoggerAdapter)(nil)

// NewNoOpLoggerAdapter creates a new no-op logger
func NewNoOpLoggerAdapter() *NoOpLoggerAdapter {
	return &NoOpLoggerAdapter{}
}

func (n *NoOpLoggerAdapter) Debug(string, ...any) {}
func (n *NoOpLoggerAdapter) Info(string, ...any)  {}
func (n *NoOpLoggerAdapter) Warn(string, ...any)  {}
func (n *NoOpLoggerAdapter) Error(string, ...any) {}
