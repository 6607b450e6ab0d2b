package tidal

import "fmt"

// safeCall runs fn, logging a returned error or a recovered panic. It
// reports whether fn completed without either.
func safeCall(logger LoggerAdapter, name string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s panicked: %v", name, r)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		logger.Error("%s failed: %v", name, err)
		return false
	}
	return true
}

// panicError turns a recovered value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
