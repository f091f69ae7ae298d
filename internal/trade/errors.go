package trade

import (
	"errors"
	"fmt"
)

// ErrInvalidOrder is the sentinel every rejected placement wraps.
var ErrInvalidOrder = errors.New("invalid order")

// InvalidOrderError describes which field made a placement invalid.
type InvalidOrderError struct {
	Field  string
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
}

func (e *InvalidOrderError) Unwrap() error {
	return ErrInvalidOrder
}

func invalid(field, format string, args ...any) error {
	return &InvalidOrderError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
