package retry

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for classifying remote failures.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error was explicitly marked transient.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error was explicitly marked fatal.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// StatusError is an upstream HTTP failure.
type StatusError struct {
	Code int
	Body string
}

// NewStatusError builds a StatusError, truncating the body to 200 bytes.
func NewStatusError(code int, body []byte) *StatusError {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return &StatusError{Code: code, Body: s}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error (status %d %s): %s", e.Code, http.StatusText(e.Code), e.Body)
}
