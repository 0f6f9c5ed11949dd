package jobs

import (
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
)

// Config controls the background job loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	WorkerCount int
	EnabledJobs []string
	Retention   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 5 * time.Minute,
		JobTimeout:  30 * time.Second,
		WorkerCount: 8,
		Retention:   30 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = defaults.WorkerCount
	}
	if c.Retention <= 0 {
		c.Retention = defaults.Retention
	}
	return c
}

// ProvideConfig maps the env configuration onto the runner config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: time.Duration(cfg.Jobs.IntervalSeconds) * time.Second,
		WorkerCount: cfg.Jobs.WorkerCount,
		EnabledJobs: cfg.Jobs.EnabledJobs,
		Retention:   time.Duration(cfg.Jobs.RetentionDays) * 24 * time.Hour,
	}.withDefaults()
}
