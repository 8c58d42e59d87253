package governor

import (
	"context"
	"sync"
	"time"
)

// EmbedderReloader performs the actual hot-swap: construct a new embedder,
// verify its dimension matches, and atomically swap it in under the
// engine's write lock and embedder mutex. Implemented by internal/engine.
type EmbedderReloader interface {
	ReloadEmbedder(ctx context.Context) error
}

// ActiveRequestsFunc reports the current count of in-flight HTTP requests.
type ActiveRequestsFunc func() int

// QueueDepthFunc reports the current extraction queue depth.
type QueueDepthFunc func() int

// reloadDecider tracks the gating state for auto embedder reload: a
// consecutive-high-RSS streak, a minimum interval since the last reload,
// and a sliding window capping how many reloads can happen per window.
type reloadDecider struct {
	cfg Config

	mu          sync.Mutex
	highStreak  int
	lastReload  time.Time
	reloadTimes []time.Time
}

func newReloadDecider(cfg Config) *reloadDecider {
	return &reloadDecider{cfg: cfg}
}

// observe records one RSS sample and returns true if a reload should fire
// now. It does not itself record the reload; call recordReload after a
// successful swap.
func (d *reloadDecider) observe(rss uint64, activeRequests, queueDepth int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rss <= d.cfg.RSSThresholdBytes {
		d.highStreak = 0
		return false
	}
	d.highStreak++

	if d.highStreak < d.cfg.RequiredHighStreak {
		return false
	}
	if !d.lastReload.IsZero() && time.Since(d.lastReload) < d.cfg.MinReloadInterval {
		return false
	}
	if activeRequests > d.cfg.MaxActiveRequests {
		return false
	}
	if queueDepth > d.cfg.MaxQueueDepth {
		return false
	}

	d.pruneWindow(time.Now())
	if len(d.reloadTimes) >= d.cfg.MaxReloadsPerWindow {
		return false
	}

	return true
}

func (d *reloadDecider) recordReload(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.highStreak = 0
	d.lastReload = at
	d.reloadTimes = append(d.reloadTimes, at)
	d.pruneWindow(at)
}

func (d *reloadDecider) pruneWindow(now time.Time) {
	cutoff := now.Add(-d.cfg.ReloadWindow)
	i := 0
	for ; i < len(d.reloadTimes); i++ {
		if d.reloadTimes[i].After(cutoff) {
			break
		}
	}
	d.reloadTimes = d.reloadTimes[i:]
}

// reloader wraps an EmbedderReloader with lifetime counters for /metrics.
type reloader struct {
	target EmbedderReloader
	trim   *Trimmer

	mu       sync.Mutex
	counters ReloadCounters
}

func newReloaderWrapper(target EmbedderReloader, trim *Trimmer) *reloader {
	return &reloader{
		target:   target,
		trim:     trim,
		counters: ReloadCounters{ReasonCounts: make(map[string]int64)},
	}
}

func (r *reloader) run(ctx context.Context, reason string) error {
	start := time.Now()

	r.mu.Lock()
	r.counters.Triggered++
	r.counters.LastReason = reason
	r.counters.ReasonCounts[reason]++
	r.mu.Unlock()

	err := r.target.ReloadEmbedder(ctx)

	r.mu.Lock()
	r.counters.LastDuration = time.Since(start)
	if err != nil {
		r.counters.Failed++
	} else {
		r.counters.Succeeded++
	}
	r.mu.Unlock()

	if err == nil && r.trim != nil {
		r.trim.Run("embedder_reload")
	}
	return err
}

func (r *reloader) snapshot() ReloadCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64, len(r.counters.ReasonCounts))
	for k, v := range r.counters.ReasonCounts {
		counts[k] = v
	}
	snap := r.counters
	snap.ReasonCounts = counts
	return snap
}
