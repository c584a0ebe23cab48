/*
errors.go - Error types for the plan package

ERROR CATEGORIES:
  1. Invalid input - non-finite numbers, negative table values, bad counts
  2. Unknown target - a discount target outside the four valid buckets

The engine itself never fails: Resolve is total over decimal inputs. Errors
only come from the conversion boundary (json.go, Validate) and from
ApplyDiscount when the target is not one of the known values.

USAGE:
  if errors.Is(err, plan.ErrInvalidInput) {
      // reject the edit, keep the previous override
  }
*/
package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a value cannot enter the engine.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownTarget is returned for a discount target that is not a bucket.
	ErrUnknownTarget = errors.New("unknown discount target")
)

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnknownTarget)
}
