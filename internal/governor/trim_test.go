package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrimmer_SkipsWithinCooldown(t *testing.T) {
	trimmer := NewTrimmer(time.Hour)
	trimmer.Run("first")
	trimmer.Run("second")

	counters := trimmer.Counters()
	assert.Equal(t, int64(1), counters.Triggered)
	assert.Equal(t, int64(1), counters.Skipped)
}

func TestTrimmer_RunsAgainAfterCooldown(t *testing.T) {
	trimmer := NewTrimmer(time.Millisecond)
	trimmer.Run("first")
	time.Sleep(5 * time.Millisecond)
	trimmer.Run("second")

	counters := trimmer.Counters()
	assert.Equal(t, int64(2), counters.Triggered)
}
