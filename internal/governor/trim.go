package governor

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Trimmer invokes GC and the allocator's FreeOSMemory, gated by a cooldown
// so back-to-back calls (e.g. one from the extraction pool's per-job hook,
// one from the periodic cron tick) collapse into a single actual trim.
type Trimmer struct {
	cooldown time.Duration

	mu       sync.Mutex
	lastRun  time.Time
	counters TrimCounters
}

// NewTrimmer builds a Trimmer with the given cooldown window.
func NewTrimmer(cooldown time.Duration) *Trimmer {
	return &Trimmer{cooldown: cooldown}
}

// Run records the attempt and performs the trim unless the previous one
// happened within the cooldown window.
func (t *Trimmer) Run(reason string) {
	now := time.Now()

	t.mu.Lock()
	if !t.lastRun.IsZero() && now.Sub(t.lastRun) < t.cooldown {
		t.counters.Skipped++
		t.mu.Unlock()
		return
	}
	t.lastRun = now
	t.mu.Unlock()

	start := time.Now()
	runtime.GC()
	debug.FreeOSMemory()
	duration := time.Since(start)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	t.mu.Lock()
	t.counters.Triggered++
	t.counters.LastDuration = duration
	t.counters.LastRanAt = start
	t.counters.LastHeapBytes = m.HeapAlloc
	t.mu.Unlock()

	_ = reason
}

// Counters returns a snapshot of the trimmer's lifetime activity.
func (t *Trimmer) Counters() TrimCounters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// Func adapts the Trimmer into the extraction package's TrimFunc signature.
func (t *Trimmer) Func() func(reason string) {
	return t.Run
}
