package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_EnqueueFillsUpToCapacityThenFails(t *testing.T) {
	q := NewQueue(2)
	assert.NoError(t, q.Enqueue("a"))
	assert.NoError(t, q.Enqueue("b"))
	assert.ErrorIs(t, q.Enqueue("c"), ErrQueueFull)
	assert.Equal(t, 2, q.Depth())
}

func TestRetryAfterSeconds_ClampsBetween1And30(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(0, 4))
	assert.Equal(t, 1, RetryAfterSeconds(1, 4))
	assert.Equal(t, 3, RetryAfterSeconds(8, 4))
	assert.Equal(t, 30, RetryAfterSeconds(10000, 1))
}

func TestRetryAfterSeconds_WorkersFloorsToOne(t *testing.T) {
	assert.Equal(t, RetryAfterSeconds(10, 1), RetryAfterSeconds(10, 0))
}
