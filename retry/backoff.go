package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay inserted after a failed attempt.
type Strategy interface {
	// Delay returns how long to wait after failed attempt i (0-indexed)
	// before attempt i+1 starts.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Exponential with additive jitter
// ──────────────────────────────────────────────────

// ExponentialJitter doubles a base delay each attempt and adds a uniformly
// distributed jitter on top.
// Delay = min(Base * 2^attempt, Max) + U[0, Jitter).
type ExponentialJitter struct {
	Base   time.Duration
	Jitter time.Duration
	// Max caps the exponential part. Zero means uncapped.
	Max time.Duration
	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// NewExponentialJitter creates an exponential backoff with additive jitter.
func NewExponentialJitter(base, jitter time.Duration) *ExponentialJitter {
	return &ExponentialJitter{Base: base, Jitter: jitter}
}

// Delay returns Base * 2^attempt (capped at Max) plus jitter in [0, Jitter).
func (e *ExponentialJitter) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Large attempt numbers saturate instead of wrapping negative.
	d := time.Duration(math.MaxInt64)
	if f := float64(e.Base) * math.Pow(2, float64(attempt)); f < float64(math.MaxInt64) {
		d = time.Duration(f)
	}
	if e.Max > 0 && d > e.Max {
		d = e.Max
	}
	if e.Jitter <= 0 {
		return d
	}
	r := rand.Float64 //nolint:gosec // jitter intentionally uses non-crypto rand
	if e.Rand != nil {
		r = e.Rand
	}
	j := time.Duration(r() * float64(e.Jitter))
	if d > math.MaxInt64-j {
		return math.MaxInt64
	}
	return d + j
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns 2^i seconds plus up to one second of jitter.
func DefaultStrategy() Strategy {
	return NewExponentialJitter(time.Second, time.Second)
}
