package ratelimiter

import (
	"sync"
	"time"
)

// ClientLimiter admits at most `limit` requests per client address
// within a trailing window. Unlike the token bucket in RateLimiter it
// tracks individual request timestamps, so the bound holds exactly over
// any trailing interval: the (N+1)th request inside the window is
// rejected no matter how the requests are spaced.
//
// State is in-memory and per-process; it resets on restart and does not
// coordinate across replicas. Empty client records are garbage-collected
// lazily during Admit, no background sweeper runs.
//
// Thread safety: all methods are safe for concurrent use.
type ClientLimiter struct {
	limit  int
	window time.Duration

	// now is the clock; replaceable in tests.
	now func() time.Time

	mu        sync.Mutex
	clients   map[string][]time.Time
	lastSweep time.Time
}

// NewClientLimiter creates a sliding-window limiter.
//
// limit <= 0 disables per-client limiting: Admit always returns true.
func NewClientLimiter(limit int, window time.Duration) *ClientLimiter {
	return &ClientLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string][]time.Time),
	}
}

// SetClock overrides the limiter's clock. Test hook; not for production
// use.
func (l *ClientLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Admit records a request attempt from addr and reports whether it is
// within quota. Timestamps older than the window are pruned before the
// count is checked; an admitted request is recorded immediately.
func (l *ClientLimiter) Admit(addr string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := pruneBefore(l.clients[addr], cutoff)

	if len(stamps) >= l.limit {
		l.clients[addr] = stamps
		l.sweepLocked(now, cutoff)
		return false
	}

	l.clients[addr] = append(stamps, now)
	l.sweepLocked(now, cutoff)
	return true
}

// ClientCount returns the number of client records currently held.
// Monitoring/test helper.
func (l *ClientLimiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// sweepLocked drops client records whose every timestamp has aged out.
// Runs at most once per window to keep Admit O(own record) in the
// common case. Caller must hold l.mu.
func (l *ClientLimiter) sweepLocked(now time.Time, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now

	for addr, stamps := range l.clients {
		if len(pruneBefore(stamps, cutoff)) == 0 {
			delete(l.clients, addr)
		}
	}
}

// pruneBefore returns the suffix of stamps at or after cutoff. Stamps
// are appended in order, so a linear scan for the first survivor is
// enough.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range stamps {
		if ts.After(cutoff) {
			return stamps[i:]
		}
	}
	return nil
}
