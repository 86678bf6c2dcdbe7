package retry

import (
	"errors"
	"net/http"
	"strings"
)

// retryableSignals are the substrings that mark an error message as a
// transient upstream condition.
var retryableSignals = []string{
	"429",
	"Resource has been exhausted",
	"RESOURCE_EXHAUSTED",
	"500",
	"503",
}

// Classifier decides whether a failed attempt may be retried.
type Classifier func(err error) bool

// IsRetryable is the default classifier.
//
// Precedence: an explicit FatalError is never retried and an explicit
// TransientError always is. A StatusError is decided by its code alone (429,
// 500 and 503 retry). Any other error is retryable when its message carries
// one of the retryable signals.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsFatal(err) {
		return false
	}
	if IsTransient(err) {
		return true
	}

	var status *StatusError
	if errors.As(err, &status) {
		switch status.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusServiceUnavailable:
			return true
		}
		return false
	}

	msg := err.Error()
	for _, signal := range retryableSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}
