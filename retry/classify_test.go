package retry_test

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/c360studio/brandstudio/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited text", errors.New("got status 429 from upstream"), true},
		{"exhausted phrase", errors.New("Resource has been exhausted (e.g. check quota)."), true},
		{"exhausted status name", errors.New("RESOURCE_EXHAUSTED"), true},
		{"server error text", errors.New("HTTP 500"), true},
		{"unavailable text", errors.New("503 Service Unavailable"), true},
		{"bad request text", errors.New("400 INVALID_ARGUMENT"), false},
		{"auth text", errors.New("API key not valid"), false},
		{"status 429", &retry.StatusError{Code: http.StatusTooManyRequests}, true},
		{"status 500", &retry.StatusError{Code: http.StatusInternalServerError}, true},
		{"status 503", &retry.StatusError{Code: http.StatusServiceUnavailable}, true},
		{"status 502", &retry.StatusError{Code: http.StatusBadGateway}, false},
		{"status 400 mentioning 500", &retry.StatusError{Code: http.StatusBadRequest, Body: "max 500 chars"}, false},
		{"wrapped status", fmt.Errorf("generate: %w", &retry.StatusError{Code: 503}), true},
		{"explicit transient", retry.NewTransientError(errors.New("timeout")), true},
		{"explicit fatal", retry.NewFatalError(errors.New("500 but misconfigured")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.IsRetryable(tt.err))
		})
	}
}

func TestErrorWrappers(t *testing.T) {
	base := errors.New("boom")

	transient := retry.NewTransientError(base)
	assert.True(t, retry.IsTransient(transient))
	assert.False(t, retry.IsFatal(transient))
	assert.ErrorIs(t, transient, base)
	assert.Equal(t, "boom", transient.Error())

	fatal := retry.NewFatalError(base)
	assert.True(t, retry.IsFatal(fatal))
	assert.False(t, retry.IsTransient(fatal))
	assert.ErrorIs(t, fatal, base)
}

func TestNewStatusError_TruncatesBody(t *testing.T) {
	body := make([]byte, 300)
	for i := range body {
		body[i] = 'x'
	}
	err := retry.NewStatusError(http.StatusTooManyRequests, body)
	assert.Len(t, err.Body, 203)
	assert.Contains(t, err.Error(), "status 429 Too Many Requests")
}

func TestExponentialJitter_Bounds(t *testing.T) {
	e := retry.NewExponentialJitter(time.Second, time.Second)

	for attempt := 0; attempt < 5; attempt++ {
		floor := time.Duration(1<<attempt) * time.Second
		for range 100 {
			d := e.Delay(attempt)
			assert.GreaterOrEqual(t, d, floor)
			assert.Less(t, d, floor+time.Second)
		}
	}
}

func TestExponentialJitter_MinimumDoubles(t *testing.T) {
	e := &retry.ExponentialJitter{Base: time.Second, Jitter: time.Second, Rand: func() float64 { return 0 }}

	for i := 0; i < 6; i++ {
		assert.GreaterOrEqual(t, e.Delay(i+1), 2*e.Delay(i))
	}
}

func TestExponentialJitter_CapsAtMax(t *testing.T) {
	e := &retry.ExponentialJitter{Base: time.Second, Max: 5 * time.Second}
	assert.Equal(t, 5*time.Second, e.Delay(10))
	assert.Equal(t, time.Second, e.Delay(-1))
}

func TestExponentialJitter_SaturatesOnLargeAttempts(t *testing.T) {
	e := &retry.ExponentialJitter{Base: time.Second, Jitter: time.Second, Rand: func() float64 { return 0.5 }}

	prev := e.Delay(0)
	for attempt := 1; attempt <= 80; attempt++ {
		d := e.Delay(attempt)
		require.Positive(t, d, "attempt %d", attempt)
		require.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, time.Duration(math.MaxInt64), e.Delay(34))
	assert.Equal(t, time.Duration(math.MaxInt64), e.Delay(1000))
}

func TestExponentialJitter_ProducesVariance(t *testing.T) {
	e := retry.NewExponentialJitter(time.Second, time.Second)

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[e.Delay(2)] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := retry.NewConstant(10 * time.Second)
	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 10*time.Second, c.Delay(attempt))
	}
}
