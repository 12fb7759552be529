package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := New(60*time.Second, 300)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 300; i++ {
		assert.True(t, limiter.Allow("client"), "request %d should be admitted", i+1)
		now = now.Add(10 * time.Millisecond)
	}

	assert.False(t, limiter.Allow("client"), "301st request inside the window must be denied")

	// Denials are not recorded, so the bucket still holds 300 entries.
	now = now.Add(time.Second)
	assert.False(t, limiter.Allow("client"))

	// Once the earliest timestamp ages past the window, capacity frees up.
	now = now.Add(60 * time.Second)
	assert.True(t, limiter.Allow("client"))
}

func TestKeysAreIndependent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := New(60*time.Second, 2)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	assert.True(t, limiter.Allow("b"))
}

func TestConcurrentAdmissionsAreCounted(t *testing.T) {
	const workers = 50

	limiter := New(60*time.Second, workers)

	var wg sync.WaitGroup
	admitted := make(chan bool, workers*2)

	for i := 0; i < workers*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- limiter.Allow("client")
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, workers, count, "exactly the window capacity must be admitted")
}

func TestSweepDropsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := New(60*time.Second, 10)
	limiter.now = func() time.Time { return now }

	limiter.Allow("idle")
	limiter.Allow("active")

	now = now.Add(61 * time.Second)
	limiter.Allow("active")

	limiter.Sweep()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "idle")
	assert.Contains(t, limiter.buckets, "active")
}
