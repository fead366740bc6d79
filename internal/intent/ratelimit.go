package intent

import (
	"sync"
	"time"
)

// RateLimiter caps how often the expensive LLM path may run per user,
// with a sliding window of call timestamps keyed by phone.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	calls  map[string][]time.Time
	now    func() time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records one call for the key and reports whether it is within
// the window budget. Denied calls are not recorded.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.calls[key][:0]
	for _, t := range l.calls[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls[key] = kept

	if len(kept) >= l.max {
		return false
	}
	l.calls[key] = append(kept, now)
	return true
}
