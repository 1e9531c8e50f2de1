package scheduler

import (
	"time"
)

// Config controls scheduler intervals, batch sizes and the renewal window.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration

	// CreationWindowDays is how many days ahead of a cycle's start date the
	// creation job opens it.
	CreationWindowDays int

	// LeaseKey and LeaseTTL configure the redis lease that keeps sweeps
	// single-flight across replicas. Ignored when no locker is wired.
	LeaseKey string
	LeaseTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:        time.Minute,
		BatchSize:          100,
		JobTimeout:         30 * time.Second,
		CreationWindowDays: 10,
		LeaseKey:           "subtrack:scheduler:lease",
		LeaseTTL:           5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.CreationWindowDays <= 0 {
		c.CreationWindowDays = defaults.CreationWindowDays
	}
	if c.LeaseKey == "" {
		c.LeaseKey = defaults.LeaseKey
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaults.LeaseTTL
	}
	return c
}

// ProvideConfig supplies the scheduler defaults. Per-job batch sizes come
// from the runtime jobs config and override BatchSize.
func ProvideConfig() Config {
	return DefaultConfig()
}
