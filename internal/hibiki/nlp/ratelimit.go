package nlp

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of model-backed requests
	// allowed per principal per minute when no explicit limit is
	// configured.
	DefaultRateLimit = 20

	// defaultRateLimitWindow is the sliding window duration.
	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-principal sliding-window limit on pipeline
// requests that spend model tokens.
//
// Internally it holds the call timestamps for each principal within the
// current window and prunes stale entries on every Allow call, keeping
// memory bounded to O(limit) entries per active principal.
//
// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string][]time.Time // principal → call timestamps in window
}

// NewRateLimiter returns a RateLimiter that allows at most limit calls per
// principal within window. Non-positive arguments fall back to the
// defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string][]time.Time),
	}
}

// Allow reports whether principal may make another request and, when true,
// records the current timestamp against their quota.
func (r *RateLimiter) Allow(principal string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	existing := r.counters[principal]
	valid := existing[:0] // reuse backing array
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.counters[principal] = valid
		return false
	}

	r.counters[principal] = append(valid, now)
	return true
}

// Remaining returns the number of calls principal can still make within
// the current window. Zero means the next Allow call will return false.
func (r *RateLimiter) Remaining(principal string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	count := 0
	for _, t := range r.counters[principal] {
		if t.After(cutoff) {
			count++
		}
	}
	if rem := r.limit - count; rem > 0 {
		return rem
	}
	return 0
}
