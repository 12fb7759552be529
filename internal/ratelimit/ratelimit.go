package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing interval over which requests are counted.
	DefaultWindow = 60 * time.Second
	// DefaultLimit is the per-key request capacity inside the window.
	DefaultLimit = 300

	sweepInterval = 5 * time.Minute
)

// Limiter is a per-key sliding-window counter. Buckets hold ordered request
// timestamps; entries older than the window are pruned lazily on access.
// State is process-wide and never persisted.
type Limiter struct {
	window time.Duration
	limit  int

	mu      sync.Mutex
	buckets map[string][]time.Time

	now func() time.Time
}

// New constructs a limiter with the given window width and capacity.
func New(window time.Duration, limit int) *Limiter {
	return &Limiter{
		window:  window,
		limit:   limit,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it is admitted.
// A denied request is not recorded. Concurrent calls for the same key are
// linearized: each admitted timestamp is visible to subsequent checks.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := l.prune(l.buckets[key], cutoff)
	if len(bucket) >= l.limit {
		l.buckets[key] = bucket
		return false
	}

	l.buckets[key] = append(bucket, now)
	return true
}

// Sweep drops keys whose buckets are empty after pruning, bounding the
// key-space growth of a long-running process.
func (l *Limiter) Sweep() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, bucket := range l.buckets {
		bucket = l.prune(bucket, cutoff)
		if len(bucket) == 0 {
			delete(l.buckets, key)
			continue
		}
		l.buckets[key] = bucket
	}
}

// Run sweeps periodically until the context is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// prune discards timestamps at or before cutoff. Timestamps are appended in
// non-decreasing order, so dropping from the front is sufficient.
func (l *Limiter) prune(bucket []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(bucket) && !bucket[idx].After(cutoff) {
		idx++
	}
	return bucket[idx:]
}
