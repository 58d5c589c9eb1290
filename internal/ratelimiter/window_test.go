package ratelimiter

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic window tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*ClientLimiter, *fakeClock) {
	l := NewClientLimiter(limit, window)
	clock := newFakeClock()
	l.SetClock(clock.Now)
	return l, clock
}

// TestAdmitWithinQuota verifies that N requests are admitted and the
// (N+1)th inside the window is rejected.
func TestAdmitWithinQuota(t *testing.T) {
	limiter, _ := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !limiter.Admit("10.0.0.1") {
			t.Fatalf("request %d should be admitted", i)
		}
	}

	if limiter.Admit("10.0.0.1") {
		t.Fatal("request over quota should be rejected")
	}
}

// TestAdmitAfterWindowElapsed verifies the window actually slides: once
// the oldest request ages out, a new one is admitted.
func TestAdmitAfterWindowElapsed(t *testing.T) {
	limiter, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Admit("10.0.0.1") {
			t.Fatalf("request %d should be admitted", i)
		}
		clock.Advance(10 * time.Second)
	}

	// 30s in: all three stamps are still inside the trailing minute.
	if limiter.Admit("10.0.0.1") {
		t.Fatal("fourth request within window should be rejected")
	}

	// Advance past the first stamp's expiry (first stamp at t=0,
	// now t=30s, window 60s).
	clock.Advance(31 * time.Second)

	if !limiter.Admit("10.0.0.1") {
		t.Fatal("request should be admitted after oldest stamp aged out")
	}
}

// TestAdmitRejectionIsRecordedNowhere verifies a rejected request does
// not consume quota (only admitted requests are stamped).
func TestAdmitRejectionNotRecorded(t *testing.T) {
	limiter, clock := newTestLimiter(2, time.Minute)

	limiter.Admit("10.0.0.1")
	limiter.Admit("10.0.0.1")

	// Hammer while full; none of these should extend the block.
	for i := 0; i < 10; i++ {
		if limiter.Admit("10.0.0.1") {
			t.Fatal("over-quota request should be rejected")
		}
		clock.Advance(time.Second)
	}

	// First stamp was at t=0; at t=61s it is out of the window.
	clock.Advance(51 * time.Second)
	if !limiter.Admit("10.0.0.1") {
		t.Fatal("request should be admitted once the window clears")
	}
}

// TestAdmitIsolatesClients verifies one client's quota does not affect
// another's.
func TestAdmitIsolatesClients(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	if !limiter.Admit("10.0.0.1") {
		t.Fatal("first client should be admitted")
	}
	if limiter.Admit("10.0.0.1") {
		t.Fatal("first client should be over quota")
	}
	if !limiter.Admit("10.0.0.2") {
		t.Fatal("second client should be unaffected")
	}
}

// TestLazyGC verifies stale client records are dropped during Admit.
func TestLazyGC(t *testing.T) {
	limiter, clock := newTestLimiter(5, time.Minute)

	for i := 0; i < 50; i++ {
		limiter.Admit(fmt.Sprintf("10.0.0.%d", i))
	}
	if got := limiter.ClientCount(); got != 50 {
		t.Fatalf("expected 50 client records, got %d", got)
	}

	// All records age out; the next Admit after a full window triggers
	// the sweep.
	clock.Advance(2 * time.Minute)
	limiter.Admit("10.0.1.1")

	if got := limiter.ClientCount(); got != 1 {
		t.Fatalf("expected stale records swept down to 1, got %d", got)
	}
}

// TestUnlimitedClients verifies limit <= 0 disables the limiter.
func TestUnlimitedClients(t *testing.T) {
	limiter, _ := newTestLimiter(0, time.Minute)

	for i := 0; i < 1000; i++ {
		if !limiter.Admit("10.0.0.1") {
			t.Fatalf("unlimited limiter should admit request %d", i)
		}
	}
}
