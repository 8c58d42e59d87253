package lockmanager

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_TrimsDedupesSortsAndDefaults(t *testing.T) {
	assert.Equal(t, []string{DefaultKey}, Normalize(nil))
	assert.Equal(t, []string{DefaultKey}, Normalize([]string{"  ", ""}))
	assert.Equal(t, []string{"a", "b"}, Normalize([]string{" b ", "a", "b", "a"}))
}

func TestAcquireMany_SameKeySerializes(t *testing.T) {
	m := New()
	var counter int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.AcquireMany([]string{"project/a"})
			defer release()

			n := atomic.AddInt32(&counter, 1)
			for {
				cur := atomic.LoadInt32(&maxConcurrent)
				if n <= cur || atomic.CompareAndSwapInt32(&maxConcurrent, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&counter, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxConcurrent)
}

func TestAcquireMany_DisjointKeysRunConcurrently(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		release := m.AcquireMany([]string{"project/a"})
		defer release()
		started <- struct{}{}
		time.Sleep(20 * time.Millisecond)
	}()
	go func() {
		defer wg.Done()
		release := m.AcquireMany([]string{"project/b"})
		defer release()
		started <- struct{}{}
		time.Sleep(20 * time.Millisecond)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first goroutine never started")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second goroutine never started concurrently")
	}
	wg.Wait()
}

func TestAcquireMany_MultiKeyOrderIsDeadlockFree(t *testing.T) {
	m := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release := m.AcquireMany([]string{"b", "a"})
			defer release()
		}()
		go func() {
			defer wg.Done()
			release := m.AcquireMany([]string{"a", "b"})
			defer release()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlocked acquiring overlapping multi-key sets")
	}
}

func TestAcquireAll_UsesSentinelKey(t *testing.T) {
	m := New()
	release := m.AcquireAll()
	defer release()

	done := make(chan struct{})
	go func() {
		r := m.AcquireMany([]string{AllKey})
		r()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("AcquireAll should have blocked the second AllKey acquisition")
	case <-time.After(50 * time.Millisecond):
	}
}
