package tidal

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks producer input that was rejected.
	ErrValidation = errors.New("validation failed")

	// ErrNotInitialized is reported when the client is used before Init.
	ErrNotInitialized = errors.New("client not initialized")
)

// DeliveryError describes a sub-stream send that ultimately failed.
type DeliveryError struct {
	SubStream SubStream
	Status    int
	Attempts  int
	Transient bool
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver %s: %v (attempts: %d)", e.SubStream, e.Err, e.Attempts)
	}
	return fmt.Sprintf("deliver %s: HTTP %d (attempts: %d)", e.SubStream, e.Status, e.Attempts)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
