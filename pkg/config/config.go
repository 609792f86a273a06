// Package config loads hookq configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process configuration. DatabaseURL selects PostgreSQL
// when set; otherwise SQLitePath is used (single-node mode, in-process
// locking only).
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"hookq.db"`

	MaxBatch      int           `env:"HOOKQ_MAX_BATCH" envDefault:"10"`
	MaxRetries    int           `env:"HOOKQ_MAX_RETRIES" envDefault:"5"`
	BaseDelay     time.Duration `env:"HOOKQ_BASE_DELAY" envDefault:"5s"`
	MaxDelay      time.Duration `env:"HOOKQ_MAX_DELAY" envDefault:"10m"`
	StuckTimeout  time.Duration `env:"HOOKQ_STUCK_TIMEOUT" envDefault:"5m"`
	SweepSchedule string        `env:"HOOKQ_SWEEP_SCHEDULE" envDefault:"@every 30s"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
