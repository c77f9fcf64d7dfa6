// Package ratelimit provides a process-local token-bucket limiter with one
// bucket per key and opportunistic eviction of idle buckets. The ops HTTP
// middleware and the Telegram transport both wrap it with their own key
// scheme; for horizontally scaled deployments prefer a distributed limiter.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleTTL      = 10 * time.Minute
	cleanupEvery = 5000
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerKey hands out one token bucket per key. Buckets are created on demand
// in a mutex-guarded map; idle buckets are evicted during lookups once
// enough have accumulated, keeping memory bounded without a background
// goroutine. Safe for concurrent use.
type PerKey struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*bucket
	cleanupN uint64
}

// NewPerKey constructs a PerKey limiter with the given tokens-per-second
// and burst size. burst values <= 0 are coerced to 1.
func NewPerKey(rps float64, burst int) *PerKey {
	if burst <= 0 {
		burst = 1
	}
	return &PerKey{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

// Burst returns the effective burst size after coercion.
func (l *PerKey) Burst() int { return l.burst }

// Allow reports whether the caller identified by key may proceed now.
func (l *PerKey) Allow(key string) bool {
	return l.get(key).Allow()
}

// get returns (and updates) the bucket for key, creating it if absent.
// Eviction runs before the requested bucket is touched so an old one can be
// dropped even when it is the one being fetched.
func (l *PerKey) get(key string) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	l.cleanupN++
	if l.cleanupN >= cleanupEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= idleTTL {
				delete(l.buckets, k)
			}
		}
		l.cleanupN = 0
	}

	if b, ok := l.buckets[key]; ok {
		b.lastSeen = now
		lim := b.limiter
		l.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(l.rps, l.burst)
	l.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	l.mu.Unlock()
	return lim
}
