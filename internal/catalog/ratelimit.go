// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
)

// RateLimiter enforces the catalog's published request caps: at most 5
// requests in any sliding second and 40 in any sliding minute.
//
// # Implementation
//
// It keeps a timestamped history of granted requests. A caller blocks until
// adding one more request satisfies both windows; the computed wait always
// includes [constants.CatalogRateBuffer] so a retry never races the window
// edge. The history is bounded by the minute cap, so memory stays constant.
//
// This is deliberately not a token bucket: the catalog measures true sliding
// windows, and a bucket's steady refill would admit bursts the upstream
// counts as violations.
type RateLimiter struct {
	mu      sync.Mutex
	history []time.Time

	// injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// RateStats is a point-in-time snapshot of both windows.
type RateStats struct {
	SecondCount int `json:"requests_last_second"`
	MinuteCount int `json:"requests_last_minute"`
}

// NewRateLimiter constructs a limiter with the real clock.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		now:   time.Now,
		sleep: sleepContext,
	}
}

// WaitIfNeeded blocks until one more catalog request is admissible, then
// records it. It returns early only when ctx is done, in which case no
// request is recorded.
func (l *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.evict(now)

		wait := l.nextWait(now)
		if wait <= 0 {
			l.history = append(l.history, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Stats returns the current occupancy of both sliding windows.
func (l *RateLimiter) Stats() RateStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	return RateStats{
		SecondCount: l.countSince(now.Add(-time.Second)),
		MinuteCount: len(l.history),
	}
}

// evict drops history entries older than the minute window. Callers must
// hold mu.
func (l *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-time.Minute)

	idx := 0
	for idx < len(l.history) && !l.history[idx].After(cutoff) {
		idx++
	}

	if idx > 0 {
		l.history = append(l.history[:0], l.history[idx:]...)
	}
}

// nextWait returns how long the caller must sleep before both windows admit
// one more request, or zero when it is admissible now. Callers must hold mu.
func (l *RateLimiter) nextWait(now time.Time) time.Duration {
	var wait time.Duration

	// 1-second window
	secondCutoff := now.Add(-time.Second)
	if l.countSince(secondCutoff) >= constants.CatalogRequestsPerSecond {
		oldest := l.oldestSince(secondCutoff)
		if w := oldest.Add(time.Second).Sub(now) + constants.CatalogRateBuffer; w > wait {
			wait = w
		}
	}

	// 1-minute window: evict already trimmed to it, so length is the count
	if len(l.history) >= constants.CatalogRequestsPerMinute {
		oldest := l.history[0]
		if w := oldest.Add(time.Minute).Sub(now) + constants.CatalogRateBuffer; w > wait {
			wait = w
		}
	}

	return wait
}

// countSince counts history entries strictly after the cutoff. Callers must
// hold mu.
func (l *RateLimiter) countSince(cutoff time.Time) int {
	count := 0
	for i := len(l.history) - 1; i >= 0; i-- {
		if !l.history[i].After(cutoff) {
			break
		}
		count++
	}

	return count
}

// oldestSince returns the oldest entry strictly after the cutoff. Callers
// must hold mu and ensure at least one entry qualifies.
func (l *RateLimiter) oldestSince(cutoff time.Time) time.Time {
	for _, ts := range l.history {
		if ts.After(cutoff) {
			return ts
		}
	}

	return l.history[len(l.history)-1]
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
