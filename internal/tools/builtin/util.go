package builtin

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RateLimiter spaces out requests per key (usually a host).
type RateLimiter struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
}

// NewRateLimiter creates a limiter allowing one request per interval per key.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		last:     make(map[string]time.Time),
		interval: interval,
	}
}

// Wait blocks until the next request for key may go out, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	now := time.Now()
	slot := now
	if last, ok := r.last[key]; ok {
		if next := last.Add(r.interval); next.After(now) {
			slot = next
		}
	}
	r.last[key] = slot
	r.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// collapseSpace joins whitespace-separated fields with single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
