package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"
)

// Limiter decides if an action from key should be allowed.
// Allow returns (allowed, retryAfterSeconds). When allowed is false, retryAfterSeconds
// may be set for the Retry-After response header or a chat cooldown notice (0 = omit).
type Limiter interface {
	Allow(key string) (allowed bool, retryAfterSec int)
}

// Key namespaces a numeric id, e.g. Key("tg-user", 42) for per-user chat throttling.
func Key(scope string, id int64) string {
	return scope + ":" + strconv.FormatInt(id, 10)
}

// Noop allows everything.
type Noop struct{}

func (Noop) Allow(key string) (bool, int) { return true, 0 }

// InMemory is a sliding-window limiter per key. State is process-local.
type InMemory struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	limit   int
	window  time.Duration
	nowFunc func() time.Time
}

// NewInMemory allows up to limit hits per key per window.
func NewInMemory(limit int, window time.Duration) *InMemory {
	return &InMemory{
		entries: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		nowFunc: time.Now,
	}
}

func (r *InMemory) Allow(key string) (allowed bool, retryAfterSec int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFunc()
	times := r.live(r.entries[key], now)
	if len(times) < r.limit {
		r.entries[key] = append(times, now)
		return true, 0
	}
	r.entries[key] = times
	// round up so callers never retry a moment too early
	wait := times[0].Add(r.window).Sub(now)
	return false, int(math.Ceil(wait.Seconds()))
}

// Prune drops keys with no hits inside the window and returns how many were removed.
// Long-running chat transports call it periodically so idle users don't accumulate.
func (r *InMemory) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFunc()
	removed := 0
	for key, times := range r.entries {
		if times = r.live(times, now); len(times) == 0 {
			delete(r.entries, key)
			removed++
			continue
		}
		r.entries[key] = times
	}
	return removed
}

// Len is the number of tracked keys.
func (r *InMemory) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// live filters times in place to those still inside the window.
func (r *InMemory) live(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	i := 0
	for _, t := range times {
		if t.After(cutoff) {
			times[i] = t
			i++
		}
	}
	return times[:i]
}
