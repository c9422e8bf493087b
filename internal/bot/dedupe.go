package bot

import (
	"sync"
	"time"
)

// DefaultDedupeTTL bounds how long an update id is remembered.
const DefaultDedupeTTL = 10 * time.Minute

// dedupe remembers recently handled update ids so that a redelivered update
// (Telegram retries webhooks it considers failed) is not executed twice.
type dedupe struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	seen    map[int]time.Time
	lookups int
}

func newDedupe(ttl time.Duration) *dedupe {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &dedupe{ttl: ttl, now: time.Now, seen: make(map[int]time.Time)}
}

// firstSeen records id and reports whether it had not been seen within the
// TTL. Non-positive ids are never deduplicated.
func (d *dedupe) firstSeen(id int) bool {
	if id <= 0 {
		return true
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.lookups++
	if d.lookups >= 1000 {
		for k, at := range d.seen {
			if now.Sub(at) >= d.ttl {
				delete(d.seen, k)
			}
		}
		d.lookups = 0
	}

	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return false
	}
	d.seen[id] = now
	return true
}

func (d *dedupe) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
