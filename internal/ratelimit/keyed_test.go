package ratelimit

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNew_BurstCoercion_AndReuse(t *testing.T) {
	k := New(2.0, 0)
	if k.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", k.burst)
	}
	lim := k.limiter("k1")
	if got := k.limiter("k1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
	if k.Len() != 1 {
		t.Fatalf("expected 1 bucket, got %d", k.Len())
	}
}

func TestAllow_PerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k := New(1, 2)
	k.now = func() time.Time { return now }

	if !k.Allow("a") || !k.Allow("a") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if k.Allow("a") {
		t.Fatalf("third immediate event should be denied")
	}
	if !k.Allow("b") {
		t.Fatalf("other keys have their own bucket")
	}

	now = now.Add(time.Second)
	if !k.Allow("a") {
		t.Fatalf("one token should refill after a second")
	}
}

func TestLimiter_GC(t *testing.T) {
	k := New(1, 1).WithTTL(time.Nanosecond)

	k.mu.Lock()
	k.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	k.lookups = gcEvery - 1
	k.mu.Unlock()

	_ = k.limiter("new")

	k.mu.Lock()
	_, existsOld := k.visitors["old"]
	_, existsNew := k.visitors["new"]
	k.mu.Unlock()

	if existsOld {
		t.Fatalf("expected 'old' visitor to be evicted")
	}
	if !existsNew {
		t.Fatalf("expected 'new' visitor to be created")
	}
}

func TestWithTTL_IgnoresNonPositive(t *testing.T) {
	k := New(1, 1).WithTTL(0)
	if k.ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", k.ttl)
	}
}
