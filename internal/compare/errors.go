package compare

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("comparison entry not found")
	ErrCapacityExceeded = errors.New("comparison basket is full")
	ErrMissingBasketID  = errors.New("basketId is required")
)

// ValidationError reports a malformed user-entered field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}
