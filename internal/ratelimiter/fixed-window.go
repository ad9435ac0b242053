package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// FixedWindowRateLimiter counts requests per client inside fixed windows kept
// in process memory.
type FixedWindowRateLimiter struct {
	sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewFixedWindowLimiter(limit int, length time.Duration) *FixedWindowRateLimiter {
	return &FixedWindowRateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  length,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (rl *FixedWindowRateLimiter) WithClock(now func() time.Time) *FixedWindowRateLimiter {
	rl.now = now
	return rl
}

func (rl *FixedWindowRateLimiter) Allow(_ context.Context, clientID string) (Decision, error) {
	rl.Lock()
	defer rl.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientID]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(rl.window)}
		rl.clients[clientID] = w
		return Decision{
			Allowed:   true,
			Limit:     rl.limit,
			Remaining: rl.limit - 1,
			ResetAt:   w.resetAt,
		}, nil
	}

	if w.count >= rl.limit {
		return Decision{
			Allowed:    false,
			Limit:      rl.limit,
			Remaining:  0,
			ResetAt:    w.resetAt,
			RetryAfter: w.resetAt.Sub(now),
		}, nil
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     rl.limit,
		Remaining: rl.limit - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

// Cleanup drops every window whose deadline has passed.
func (rl *FixedWindowRateLimiter) Cleanup() int {
	rl.Lock()
	defer rl.Unlock()

	now := rl.now()
	removed := 0
	for id, w := range rl.clients {
		if !now.Before(w.resetAt) {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// RunJanitor purges expired windows every window length until ctx is done.
func (rl *FixedWindowRateLimiter) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}
