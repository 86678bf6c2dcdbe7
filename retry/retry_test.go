package retry_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/c360studio/brandstudio/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures backoff sleeps without waiting.
type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func noJitter() float64 { return 0 }

func TestDo_SuccessOnFirstTry(t *testing.T) {
	rec := &recorder{}
	calls := 0

	got, err := retry.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}, retry.WithSleep(rec.sleep))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_BoundedRetries(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max=%d", n), func(t *testing.T) {
			rec := &recorder{}
			calls := 0
			var last error

			_, err := retry.Do(context.Background(), func(context.Context) (int, error) {
				calls++
				last = fmt.Errorf("attempt %d: 429 Too Many Requests", calls)
				return 0, last
			}, retry.WithMaxAttempts(n), retry.WithSleep(rec.sleep))

			require.Error(t, err)
			assert.Same(t, last, err, "the most recent failure is propagated unchanged")
			assert.Equal(t, n, calls)
			assert.Len(t, rec.delays, n-1, "no sleep after the final attempt")
		})
	}
}

func TestDo_DefaultMaxAttempts(t *testing.T) {
	rec := &recorder{}
	calls := 0

	_, err := retry.Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("503 Service Unavailable")
	}, retry.WithSleep(rec.sleep))

	require.Error(t, err)
	assert.Equal(t, retry.DefaultMaxAttempts, calls)
	assert.Len(t, rec.delays, retry.DefaultMaxAttempts-1)
}

func TestDo_FastFailOnNonRetryable(t *testing.T) {
	rec := &recorder{}
	calls := 0
	invalid := errors.New("400 invalid argument: prompt is empty")

	_, err := retry.Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, invalid
	}, retry.WithMaxAttempts(10), retry.WithSleep(rec.sleep))

	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_RecoveryMidSequence(t *testing.T) {
	rec := &recorder{}
	calls := 0

	got, err := retry.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("Resource has been exhausted (e.g. check quota)")
		}
		return "second", nil
	}, retry.WithMaxAttempts(2), retry.WithSleep(rec.sleep))

	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, 2, calls)
	assert.Len(t, rec.delays, 1)
}

func TestDo_SingleAttemptNeverSleeps(t *testing.T) {
	for name, failure := range map[string]error{
		"retryable":     errors.New("500 internal"),
		"non-retryable": errors.New("401 unauthenticated"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			calls := 0

			_, err := retry.Do(context.Background(), func(context.Context) (int, error) {
				calls++
				return 0, failure
			}, retry.WithMaxAttempts(1), retry.WithSleep(rec.sleep))

			assert.ErrorIs(t, err, failure)
			assert.Equal(t, 1, calls)
			assert.Empty(t, rec.delays)
		})
	}
}

func TestDo_DelaySchedule(t *testing.T) {
	rec := &recorder{}

	_, _ = retry.Do(context.Background(), func(context.Context) (int, error) {
		return 0, &retry.StatusError{Code: http.StatusTooManyRequests}
	},
		retry.WithMaxAttempts(4),
		retry.WithSleep(rec.sleep),
		retry.WithBackoff(&retry.ExponentialJitter{Base: time.Second, Jitter: time.Second, Rand: noJitter}),
	)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestDo_OnRetryHook(t *testing.T) {
	rec := &recorder{}
	var attempts []retry.Attempt

	_, _ = retry.Do(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("503")
	},
		retry.WithSleep(rec.sleep),
		retry.WithOnRetry(func(a retry.Attempt) { attempts = append(attempts, a) }),
	)

	require.Len(t, attempts, 2)
	assert.Equal(t, 0, attempts[0].Index)
	assert.Equal(t, 1, attempts[1].Index)
	assert.Equal(t, rec.delays[0], attempts[0].Delay)
	assert.EqualError(t, attempts[1].Err, "503")
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	upstream := errors.New("503 unavailable")

	_, err := retry.Do(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, upstream
	}, retry.WithBackoff(retry.NewConstant(time.Hour)))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, upstream)
}

func TestDo_CustomClassifier(t *testing.T) {
	rec := &recorder{}
	calls := 0

	_, err := retry.Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("anything")
	},
		retry.WithSleep(rec.sleep),
		retry.WithClassifier(func(error) bool { return true }),
	)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestSleep_ReturnsAfterDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, retry.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSleep_ZeroDurationHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, retry.Sleep(ctx, 0), context.Canceled)
	assert.NoError(t, retry.Sleep(context.Background(), 0))
}

func TestConfig_Options(t *testing.T) {
	rec := &recorder{}
	calls := 0
	cfg := retry.Config{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond}

	_, err := retry.Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("429")
	}, append(cfg.Options(), retry.WithSleep(rec.sleep))...)

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, rec.delays)
}
