package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// authThrottle limits failed authentication attempts per client IP with a
// token bucket. Successful requests never consume tokens.
type authThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	maxIdle  time.Duration
}

func newAuthThrottle(failuresPerMinute int) *authThrottle {
	if failuresPerMinute <= 0 {
		return nil
	}
	return &authThrottle{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(failuresPerMinute) / 60.0),
		burst:    failuresPerMinute,
		maxIdle:  10 * time.Minute,
	}
}

func (t *authThrottle) limiter(ip string, now time.Time) *rate.Limiter {
	lim, ok := t.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(t.rate, t.burst)
		t.limiters[ip] = lim
	}
	t.lastSeen[ip] = now
	return lim
}

// blocked reports whether ip has used up its failure budget. A nil throttle
// never blocks.
func (t *authThrottle) blocked(ip string) bool {
	if t == nil {
		return false
	}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.limiters[ip]
	if !ok {
		return false
	}
	return lim.TokensAt(now) < 1
}

// recordFailure consumes one token for ip.
func (t *authThrottle) recordFailure(ip string) {
	if t == nil {
		return
	}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.limiter(ip, now).AllowN(now, 1)
	t.prune(now)
}

// prune forgets clients that have not failed for maxIdle.
func (t *authThrottle) prune(now time.Time) {
	for ip, seen := range t.lastSeen {
		if now.Sub(seen) > t.maxIdle {
			delete(t.lastSeen, ip)
			delete(t.limiters, ip)
		}
	}
}
