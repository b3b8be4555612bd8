package validation

import (
	"errors"
	"fmt"
)

// ErrInvalid is the sentinel every validation failure unwraps to.
var ErrInvalid = errors.New("validation failed")

// Error describes which input field was rejected and why.
type Error struct {
	Field  string
	Reason string
}

func New(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalid }
