package analytics

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed caller input. It maps to a 4xx and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// PersistenceError reports a read or write failure against the analytics store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("analytics store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// AggregationError reports a failed daily aggregation for Date. Nothing is written for
// Date when this is returned.
type AggregationError struct {
	Date string
	Op   string
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation for %s failed during %s: %v", e.Date, e.Op, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is or wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
