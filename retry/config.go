package retry

import "time"

// Config holds a serialisable retry policy.
type Config struct {
	// MaxAttempts is the total number of tries per call.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// BaseDelay is the delay after the first failure before jitter.
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`

	// Jitter is the upper bound of the random delay added to each backoff.
	Jitter time.Duration `yaml:"jitter" json:"jitter"`

	// MaxDelay caps the exponential part of the delay. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultConfig returns three attempts, 1s base and 1s jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   time.Second,
		Jitter:      time.Second,
	}
}

// Options converts the config into Do options.
func (c Config) Options() []Option {
	return []Option{
		WithMaxAttempts(c.MaxAttempts),
		WithBackoff(&ExponentialJitter{
			Base:   c.BaseDelay,
			Jitter: c.Jitter,
			Max:    c.MaxDelay,
		}),
	}
}
