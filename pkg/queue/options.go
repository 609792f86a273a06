package queue

import (
	"log/slog"
	"time"

	"github.com/orderflow/hookq/pkg/security"
)

// Config holds tuning knobs for the queue service.
type Config struct {
	// MaxBatch bounds how many jobs one drain pass may execute before
	// rescheduling itself.
	MaxBatch int

	// MaxRetries is the number of failure-triggered requeues before a
	// job is dead-lettered.
	MaxRetries int

	// BaseDelay and MaxDelay bound the exponential retry backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// PendingCooldown and PendingMaxCooldown bound the delay before a
	// drain pass with leftover backlog reschedules itself.
	PendingCooldown    time.Duration
	PendingMaxCooldown time.Duration

	// StuckTimeout is how long a job may sit in processing before
	// recovery presumes its handler dead and resets it to queued.
	StuckTimeout time.Duration

	// MaxDrainDepth caps consecutive self-reschedules of one tenant's
	// drain loop. Circuit breaker against a permanently-failing handler
	// keeping the loop alive forever.
	MaxDrainDepth int

	// Logger receives all queue logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatch:           10,
		MaxRetries:         5,
		BaseDelay:          5 * time.Second,
		MaxDelay:           10 * time.Minute,
		PendingCooldown:    250 * time.Millisecond,
		PendingMaxCooldown: 5 * time.Second,
		StuckTimeout:       5 * time.Minute,
		MaxDrainDepth:      100,
	}
}

// Option modifies Config.
type Option interface {
	Apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) Apply(c *Config) { f(c) }

// MaxBatch bounds the number of jobs executed per drain pass.
func MaxBatch(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.MaxBatch = n
		}
	})
}

// MaxRetries sets the retry budget before dead-lettering.
// Values are clamped to [0, 100].
func MaxRetries(n int) Option {
	return optionFunc(func(c *Config) {
		c.MaxRetries = security.ClampRetries(n)
	})
}

// BaseDelay sets the initial retry backoff unit.
func BaseDelay(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.BaseDelay = d
		}
	})
}

// MaxDelay caps the retry backoff.
func MaxDelay(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	})
}

// PendingCooldown sets the minimum self-reschedule delay.
func PendingCooldown(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.PendingCooldown = d
		}
	})
}

// PendingMaxCooldown caps the self-reschedule delay.
func PendingMaxCooldown(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.PendingMaxCooldown = d
		}
	})
}

// StuckTimeout sets the stuck-job recovery timeout.
func StuckTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.StuckTimeout = d
		}
	})
}

// MaxDrainDepth caps consecutive drain self-reschedules.
func MaxDrainDepth(n int) Option {
	return optionFunc(func(c *Config) {
		if n > 0 {
			c.MaxDrainDepth = n
		}
	})
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		c.Logger = logger
	})
}
