package core

import "time"

// rateLimiter counts inbound lines per fixed window. A nil limiter allows everything.
// It is used by one reader at a time and is not safe for concurrent use.
type rateLimiter struct {
	limit       int
	window      time.Duration
	now         Clock
	counter     int
	windowStart time.Time
}

func newRateLimiter(limit int, window time.Duration, now Clock) *rateLimiter {
	if limit <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:       limit,
		window:      window,
		now:         now,
		windowStart: now(),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	if now := r.now(); now.Sub(r.windowStart) >= r.window {
		r.windowStart = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
