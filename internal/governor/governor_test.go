package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_StartStopIsIdempotentAndCooperative(t *testing.T) {
	cfg := Config{
		JobReapInterval: 50 * time.Millisecond,
		TrimInterval:    time.Hour,
		CheckInterval:   time.Hour,
	}
	g := New(cfg, nil, nil, nil, nil, nil)

	g.Start(context.Background())
	g.Start(context.Background())

	trim, reload := g.Metrics()
	assert.Equal(t, int64(0), trim.Triggered)
	assert.Equal(t, int64(0), reload.Triggered)

	g.Stop()
	g.Stop()
}

func TestGovernor_TrimmerAccessibleForExternalHooks(t *testing.T) {
	g := New(Config{}, nil, nil, nil, nil, nil)
	require.NotNil(t, g.Trimmer())
	g.Trimmer().Run("test")
	assert.Equal(t, int64(1), g.Trimmer().Counters().Triggered)
}
