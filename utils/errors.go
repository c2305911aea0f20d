package utils

import (
	"errors"
	"fmt"
)

// Page-driver failures that are expected to clear up on their own.
var (
	ErrElementNotFound = errors.New("element not found")
	ErrStaleElement    = errors.New("stale element reference")
)

// IsTransient reports whether err is a timing-dependent UI failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrElementNotFound) || errors.Is(err, ErrStaleElement)
}

// TransientUIError is returned once a retried operation has used up its attempts.
type TransientUIError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientUIError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientUIError) Unwrap() error {
	return e.Err
}
