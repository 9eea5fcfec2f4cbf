package worker

import "time"

// Config controls worker intervals and batch sizes.
type Config struct {
	RunInterval   time.Duration
	DrainBatch    int
	SweepInterval time.Duration
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Minute,
		DrainBatch:    50,
		SweepInterval: time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = defaults.DrainBatch
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	return c
}
