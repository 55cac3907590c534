// FILE: src/internal/bridge/connguard.go
// connGuard rate-limits how often the inbound role will accept and
// attempt to handshake a new peer connection, guarding against a
// misbehaving or malicious peer that repeatedly connects and abandons
// the handshake. Adapted from the teacher's own token-bucket rate
// limiter (previously internal/limiter/token_bucket.go, one of eight
// overlapping rate-limiter generations in the teacher's copy; see
// DESIGN.md) into a single-bucket, single-purpose guard scoped to the
// bridge's one-peer-at-a-time accept loop rather than per-remote-addr
// tracking, since the bridge always expects exactly one peer.
package bridge

import (
	"sync"
	"time"
)

type connGuard struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newConnGuard(capacity, refillPerSecond float64) *connGuard {
	return &connGuard{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillPerSecond,
		lastRefill: time.Now(),
	}
}

// allow reports whether another handshake attempt may proceed right
// now, consuming one token if so.
func (g *connGuard) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(g.lastRefill).Seconds(); elapsed > 0 {
		g.tokens += elapsed * g.refillRate
		if g.tokens > g.capacity {
			g.tokens = g.capacity
		}
		g.lastRefill = now
	}

	if g.tokens < 1 {
		return false
	}
	g.tokens--
	return true
}
