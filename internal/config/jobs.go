package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// JobsConfig carries the operational toggles for the scheduled jobs. It is
// read from jobs.yml and hot-reloaded, so jobs can be paused or retuned
// without a restart.
type JobsConfig struct {
	CycleCreation      JobToggle `mapstructure:"cycleCreation"`
	AutoCancellation   JobToggle `mapstructure:"autoCancellation"`
	SubscriptionExpiry JobToggle `mapstructure:"subscriptionExpiry"`
}

// JobToggle enables a job and optionally overrides its batch size.
type JobToggle struct {
	Enabled   bool `mapstructure:"enabled"`
	BatchSize int  `mapstructure:"batchSize"`
}

func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		CycleCreation:      JobToggle{Enabled: true, BatchSize: 100},
		AutoCancellation:   JobToggle{Enabled: true, BatchSize: 100},
		SubscriptionExpiry: JobToggle{Enabled: true, BatchSize: 100},
	}
}

// JobsConfigHolder exposes the active JobsConfig snapshot. Reads are
// lock-free; reloads swap the whole value after validation.
type JobsConfigHolder struct {
	current atomic.Value // holds JobsConfig
}

func NewJobsConfigHolder() (*JobsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("jobs")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/subtrack/config")
	v.AddConfigPath("/etc/subtrack")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SUBTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultJobsConfig()
	v.SetDefault("jobs.cycleCreation", defaults.CycleCreation)
	v.SetDefault("jobs.autoCancellation", defaults.AutoCancellation)
	v.SetDefault("jobs.subscriptionExpiry", defaults.SubscriptionExpiry)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg JobsConfig
	if err := v.UnmarshalKey("jobs", &cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := validateJobsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &JobsConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated JobsConfig
		if err := v.UnmarshalKey("jobs", &updated); err != nil {
			log.Printf("[jobs-config] reload failed: %v", err)
			return
		}
		updated = updated.withDefaults()
		if err := validateJobsConfig(updated); err != nil {
			log.Printf("[jobs-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[jobs-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Get returns the active snapshot.
func (h *JobsConfigHolder) Get() JobsConfig {
	return h.current.Load().(JobsConfig)
}

// Store replaces the active snapshot. Exposed for tests.
func (h *JobsConfigHolder) Store(cfg JobsConfig) {
	h.current.Store(cfg.withDefaults())
}

// NewStaticJobsConfigHolder builds a holder with a fixed snapshot, used in
// tests and in paths where no jobs.yml is present.
func NewStaticJobsConfigHolder(cfg JobsConfig) *JobsConfigHolder {
	holder := &JobsConfigHolder{}
	holder.current.Store(cfg.withDefaults())
	return holder
}

func (c JobsConfig) withDefaults() JobsConfig {
	defaults := DefaultJobsConfig()
	out := c
	if out.CycleCreation.BatchSize <= 0 {
		out.CycleCreation.BatchSize = defaults.CycleCreation.BatchSize
	}
	if out.AutoCancellation.BatchSize <= 0 {
		out.AutoCancellation.BatchSize = defaults.AutoCancellation.BatchSize
	}
	if out.SubscriptionExpiry.BatchSize <= 0 {
		out.SubscriptionExpiry.BatchSize = defaults.SubscriptionExpiry.BatchSize
	}
	return out
}

func validateJobsConfig(cfg JobsConfig) error {
	for _, toggle := range []JobToggle{cfg.CycleCreation, cfg.AutoCancellation, cfg.SubscriptionExpiry} {
		if toggle.BatchSize < 0 {
			return errors.New("jobs batchSize cannot be negative")
		}
	}
	return nil
}
