package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrIdentityNotReady = errors.New("identity not ready")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError identifies the first field that failed submission checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
