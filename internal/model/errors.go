package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrRole              = errors.New("role not permitted")
	ErrUnavailable       = errors.New("lawyer is not available at this time")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("already exists")
	// ErrDelivery marks a failed best-effort push. It is logged, never returned
	// to the request that triggered the push.
	ErrDelivery = errors.New("delivery failed")
)

// Errorf wraps kind with a formatted detail message so callers can match on
// kind with errors.Is while still seeing the detail.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
