// Package governor runs the background resource-governance loops: the
// extraction-job reaper, periodic memory trim, auto embedder reload driven
// by resident-set pressure, and the extraction worker pool itself. Each
// loop is independent and cancellable through a shared context.
package governor

import "time"

const (
	DefaultJobReapInterval  = time.Minute
	DefaultJobRetention     = 24 * time.Hour
	DefaultMaxJobs          = 500
	DefaultTrimInterval     = 5 * time.Minute
	DefaultTrimCooldown     = time.Minute
	DefaultCheckInterval    = 30 * time.Second
	DefaultRSSThresholdMB   = 1024
	DefaultRequiredStreak   = 3
	DefaultMinReloadGap     = 10 * time.Minute
	DefaultReloadWindow     = time.Hour
	DefaultMaxReloadsPerWin = 2
	DefaultMaxActiveReqs    = 4
	DefaultMaxQueueDepth    = 2
)

// Config holds every tunable interval and threshold for the background
// governor's four cooperative loops (reaper, trim, auto-reload, workers).
type Config struct {
	JobReapInterval time.Duration
	JobRetention    time.Duration
	MaxJobs         int

	TrimInterval time.Duration
	TrimCooldown time.Duration

	CheckInterval       time.Duration
	RSSThresholdBytes   uint64
	RequiredHighStreak  int
	MinReloadInterval   time.Duration
	ReloadWindow        time.Duration
	MaxReloadsPerWindow int
	MaxActiveRequests   int
	MaxQueueDepth       int
}

// WithDefaults fills zero-valued fields with sane defaults.
func (c Config) WithDefaults() Config {
	if c.JobReapInterval <= 0 {
		c.JobReapInterval = DefaultJobReapInterval
	}
	if c.JobRetention <= 0 {
		c.JobRetention = DefaultJobRetention
	}
	if c.MaxJobs <= 0 {
		c.MaxJobs = DefaultMaxJobs
	}
	if c.TrimInterval <= 0 {
		c.TrimInterval = DefaultTrimInterval
	}
	if c.TrimCooldown <= 0 {
		c.TrimCooldown = DefaultTrimCooldown
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.RSSThresholdBytes == 0 {
		c.RSSThresholdBytes = DefaultRSSThresholdMB * 1024 * 1024
	}
	if c.RequiredHighStreak <= 0 {
		c.RequiredHighStreak = DefaultRequiredStreak
	}
	if c.MinReloadInterval <= 0 {
		c.MinReloadInterval = DefaultMinReloadGap
	}
	if c.ReloadWindow <= 0 {
		c.ReloadWindow = DefaultReloadWindow
	}
	if c.MaxReloadsPerWindow <= 0 {
		c.MaxReloadsPerWindow = DefaultMaxReloadsPerWin
	}
	if c.MaxActiveRequests <= 0 {
		c.MaxActiveRequests = DefaultMaxActiveReqs
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	return c
}

// TrimCounters reports the trimmer's lifetime activity, exposed on /metrics.
type TrimCounters struct {
	Triggered     int64
	Skipped       int64
	LastDuration  time.Duration
	LastRanAt     time.Time
	LastHeapBytes uint64
}

// ReloadCounters reports the auto-reloader's lifetime activity, exposed on
// /metrics.
type ReloadCounters struct {
	Triggered    int64
	Succeeded    int64
	Failed       int64
	LastDuration time.Duration
	LastReason   string
	ReasonCounts map[string]int64
}
