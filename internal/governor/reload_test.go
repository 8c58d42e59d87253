package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		RSSThresholdBytes:   1000,
		RequiredHighStreak:  2,
		MinReloadInterval:   time.Hour,
		ReloadWindow:        time.Hour,
		MaxReloadsPerWindow: 1,
		MaxActiveRequests:   4,
		MaxQueueDepth:       2,
	}.WithDefaults()
}

func TestReloadDecider_RequiresConsecutiveHighStreak(t *testing.T) {
	d := newReloadDecider(testConfig())
	assert.False(t, d.observe(2000, 0, 0))
	assert.True(t, d.observe(2000, 0, 0))
}

func TestReloadDecider_LowSampleResetsStreak(t *testing.T) {
	d := newReloadDecider(testConfig())
	d.observe(2000, 0, 0)
	d.observe(500, 0, 0)
	assert.False(t, d.observe(2000, 0, 0))
}

func TestReloadDecider_RespectsActiveRequestCeiling(t *testing.T) {
	d := newReloadDecider(testConfig())
	d.observe(2000, 0, 0)
	assert.False(t, d.observe(2000, 10, 0))
}

func TestReloadDecider_RespectsQueueDepthCeiling(t *testing.T) {
	d := newReloadDecider(testConfig())
	d.observe(2000, 0, 0)
	assert.False(t, d.observe(2000, 0, 10))
}

func TestReloadDecider_RespectsMinReloadIntervalAndWindowCap(t *testing.T) {
	d := newReloadDecider(testConfig())
	d.observe(2000, 0, 0)
	require.True(t, d.observe(2000, 0, 0))
	d.recordReload(time.Now())

	d.observe(2000, 0, 0)
	assert.False(t, d.observe(2000, 0, 0))
}

type fakeReloader struct {
	err   error
	calls int
}

func (f *fakeReloader) ReloadEmbedder(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestReloaderWrapper_TracksSuccessAndFailureCounters(t *testing.T) {
	target := &fakeReloader{}
	r := newReloaderWrapper(target, NewTrimmer(time.Hour))

	require.NoError(t, r.run(context.Background(), "rss_pressure"))
	snap := r.snapshot()
	assert.Equal(t, int64(1), snap.Triggered)
	assert.Equal(t, int64(1), snap.Succeeded)
	assert.Equal(t, int64(1), snap.ReasonCounts["rss_pressure"])
}
