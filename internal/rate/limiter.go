// Package rate throttles requests per key with token buckets.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	// Allow reports whether key may proceed under limit events per window.
	// When it may not, the duration says how long until it may.
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

// MemoryLimiter keeps one bucket per key. A bucket refills limit tokens per
// window and holds at most limit tokens.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	idle    time.Duration
	lastGC  time.Time
}

type bucket struct {
	lim    *rate.Limiter
	limit  int
	window time.Duration
	seen   time.Time
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		idle:    10 * time.Minute,
	}
}

func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return true, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		every := rate.Every(window / time.Duration(limit))
		b = &bucket{lim: rate.NewLimiter(every, limit), limit: limit, window: window}
		m.buckets[key] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops buckets idle for longer than both m.idle and their window; such
// a bucket has refilled completely.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastGC) < m.idle {
		return
	}
	m.lastGC = now
	for key, b := range m.buckets {
		if now.Sub(b.seen) > m.idle && now.Sub(b.seen) > b.window {
			delete(m.buckets, key)
		}
	}
}
