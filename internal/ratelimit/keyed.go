// Package ratelimit provides an in-memory, per-key token-bucket limiter with
// opportunistic garbage collection of idle buckets.
//
// It backs both the HTTP per-client limiter and the per-(group,user) command
// throttle in the bot. Limits are process-local.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTTL is how long an idle bucket is kept before it may be evicted.
const DefaultTTL = 10 * time.Minute

// gcEvery is the number of lookups between cleanup sweeps.
const gcEvery = 5000

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a set of token buckets addressed by string keys. Buckets are
// created on demand. It is safe for concurrent use.
type Keyed struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// New constructs a Keyed limiter refilling rps tokens per second up to burst.
// Non-positive burst values are coerced to 1.
func New(rps float64, burst int) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	return &Keyed{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      DefaultTTL,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// WithTTL overrides DefaultTTL and returns k.
func (k *Keyed) WithTTL(ttl time.Duration) *Keyed {
	if ttl > 0 {
		k.ttl = ttl
	}
	return k
}

// Allow reports whether one event for key may happen now, consuming a token
// when it may.
func (k *Keyed) Allow(key string) bool {
	return k.limiter(key).AllowN(k.now(), 1)
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.visitors)
}

// limiter returns (and touches) the bucket for key, creating it if absent.
// The GC sweep runs before the lookup so that a stale bucket is evicted even
// when it is the one being fetched.
func (k *Keyed) limiter(key string) *rate.Limiter {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	k.lookups++
	if k.lookups >= gcEvery {
		for key, v := range k.visitors {
			if now.Sub(v.lastSeen) >= k.ttl {
				delete(k.visitors, key)
			}
		}
		k.lookups = 0
	}

	if v, ok := k.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(k.rps, k.burst)
	k.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
