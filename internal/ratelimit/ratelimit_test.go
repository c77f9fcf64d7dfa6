package ratelimit

import (
	"testing"
	"time"
)

func TestPerKey_BurstThenDeny(t *testing.T) {
	l := NewPerKey(0.0001, 2)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst requests should be allowed")
	}
	if l.Allow("a") {
		t.Fatalf("request beyond burst should be denied")
	}
}

func TestPerKey_BucketsAreIndependent(t *testing.T) {
	l := NewPerKey(0.0001, 1)

	if !l.Allow("a") {
		t.Fatalf("first key should be allowed")
	}
	if !l.Allow("b") {
		t.Fatalf("second key has its own bucket")
	}
	if l.Allow("a") {
		t.Fatalf("first key exhausted its bucket")
	}
}

func TestPerKey_CoercesBurst(t *testing.T) {
	if got := NewPerKey(1, 0).Burst(); got != 1 {
		t.Fatalf("burst = %d, want coerced to 1", got)
	}
}

func TestPerKey_EvictsIdleBuckets(t *testing.T) {
	l := NewPerKey(0.0001, 1)
	l.Allow("stale")

	l.mu.Lock()
	l.buckets["stale"].lastSeen = time.Now().Add(-idleTTL - time.Minute)
	l.cleanupN = cleanupEvery - 1
	l.mu.Unlock()

	// The next lookup crosses the cleanup threshold; the stale bucket is
	// evicted and the key starts over with a fresh burst.
	if !l.Allow("stale") {
		t.Fatalf("evicted key should get a fresh bucket")
	}
}
