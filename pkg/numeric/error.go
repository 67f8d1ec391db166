package numeric

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("validation error")

// ValidationError reports a value rejected while parsing an order or setting field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s %q: %s", ErrValidation, e.Field, fmt.Sprint(e.Value), e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
