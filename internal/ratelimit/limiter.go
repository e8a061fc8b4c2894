// Package ratelimit throttles submissions per client with token buckets.
package ratelimit

import (
	"sync"
	"time"
)

type KeyType string

const (
	KeyIP     KeyType = "ip"
	KeyIPPath KeyType = "ip_path"
)

// Key builds the bucket key for a client. Unknown key types fall back to ip.
func Key(kind KeyType, ip, path string) string {
	if kind == KeyIPPath {
		return ip + "|" + path
	}
	return ip
}

// Limiter holds one bucket per key, all sharing the same rate and burst.
type Limiter struct {
	mu      sync.Mutex
	rps     float64
	burst   float64
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter returns a limiter refilling rps tokens per second up to burst. A
// non-positive rps or burst allows everything.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{rps: rps, burst: float64(burst), buckets: make(map[string]*bucket)}
}

// Allow returns true if the request is allowed, false if rate limited.
func (l *Limiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" || l.rps <= 0 || l.burst <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	b.tokens += elapsed * l.rps
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets that have been idle long enough to be full again.
func (l *Limiter) Prune(now time.Time) int {
	if l == nil || l.rps <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	refill := time.Duration(l.burst / l.rps * float64(time.Second))
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.last) >= refill {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
