// Package retry invokes remote operations that may fail transiently, retrying
// them with exponential backoff and jitter up to a bounded number of attempts.
//
// Each call to Do owns its attempt counter and delay computation; nothing is
// shared between concurrent calls. Attempts of one call never overlap.
package retry

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxAttempts is the total number of tries when none is configured.
const DefaultMaxAttempts = 3

// Attempt describes one failed invocation that is about to be retried.
type Attempt struct {
	// Index is the 0-based index of the attempt that failed.
	Index int
	// Delay is the sleep before attempt Index+1.
	Delay time.Duration
	// Err is the failure that triggered the retry.
	Err error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a single Do call.
type Option func(*options)

type options struct {
	maxAttempts int
	backoff     Strategy
	classify    Classifier
	sleep       SleepFunc
	onRetry     func(Attempt)
}

// WithMaxAttempts sets the total number of tries. Values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay strategy.
func WithBackoff(s Strategy) Option {
	return func(o *options) {
		if s != nil {
			o.backoff = s
		}
	}
}

// WithClassifier replaces IsRetryable.
func WithClassifier(c Classifier) Option {
	return func(o *options) {
		if c != nil {
			o.classify = c
		}
	}
}

// WithSleep replaces the timer-based sleep. Tests use it to record delays.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithOnRetry registers a hook called before each backoff sleep.
func WithOnRetry(fn func(Attempt)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. On exhaustion the most recent failure is returned
// unchanged. No sleep happens after the final attempt.
//
// If ctx ends during a backoff sleep, Do returns an error wrapping both the
// context error and the last failure.
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultStrategy(),
		classify:    IsRetryable,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error

	for i := 0; i < o.maxAttempts; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !o.classify(err) {
			return zero, err
		}
		if i+1 >= o.maxAttempts {
			break
		}

		delay := o.backoff.Delay(i)
		if o.onRetry != nil {
			o.onRetry(Attempt{Index: i, Delay: delay, Err: err})
		}
		if err := o.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry aborted after attempt %d: %w (last error: %w)", i+1, err, lastErr)
		}
	}

	return zero, lastErr
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
