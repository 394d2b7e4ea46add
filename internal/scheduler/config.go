package scheduler

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Config tunes the background loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Hour
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	return c
}

func ProvideConfig() Config {
	return Config{}.withDefaults()
}
