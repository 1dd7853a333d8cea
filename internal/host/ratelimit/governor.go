// Package ratelimit tracks the git-hosting API's remaining-request
// budget from response headers and tells callers how long to pause
// before the budget resets, so a scan backs off proactively instead of
// discovering the limit only after a 429.
package ratelimit

import (
	"strconv"
	"sync"
	"time"
)

// waitThreshold is the remaining-request count at or below which a
// caller should pause until reset before issuing another request.
// criticalThreshold uses the same value: once the budget is this low,
// the host is treated as exhausted regardless of whether it has
// technically hit zero.
const waitThreshold = 100

// slowDownThreshold is the remaining-request count below which callers
// should widen spacing between requests without fully pausing.
const slowDownThreshold = 500

// maxWait caps how long WaitDuration ever asks a caller to sleep, so a
// host clock far in the future (or a bogus reset header) can't stall a
// scan indefinitely.
const maxWait = 60 * time.Second

// Governor is a process-wide, mutex-guarded view of the host's rate
// limit state, generalized from the teacher's mutex-guarded in-memory
// metrics idiom.
type Governor struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetAt   time.Time
}

// NewGovernor constructs a Governor with no observed state; the first
// Observe call seeds it.
func NewGovernor() *Governor {
	return &Governor{}
}

// Observe updates state from response headers. Unparseable headers are
// ignored, leaving prior state intact.
func (g *Governor) Observe(limitHeader, remainingHeader, resetHeader string) {
	limit, err1 := strconv.Atoi(limitHeader)
	remaining, err2 := strconv.Atoi(remainingHeader)
	resetUnix, err3 := strconv.ParseInt(resetHeader, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.limit = limit
	g.remaining = remaining
	g.resetAt = time.Unix(resetUnix, 0)
}

// Remaining returns the last observed remaining-request count.
func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining
}

// ShouldThrottle reports whether the remaining budget is at or below
// the wait threshold, the point at which a caller should pause rather
// than merely slow down.
func (g *Governor) ShouldThrottle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining <= waitThreshold
}

// ShouldSlowDown reports whether the remaining budget has dropped
// below slowDownThreshold but hasn't yet reached the wait threshold,
// meaning requests should space out without a full pause.
func (g *Governor) ShouldSlowDown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining > 0 && g.remaining < slowDownThreshold
}

// IsCritical reports whether the remaining budget has reached the wait
// threshold.
func (g *Governor) IsCritical() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remaining <= waitThreshold
}

// WaitDuration returns how long a caller should sleep before its next
// request: zero while the budget is above waitThreshold, otherwise the
// time until reset, capped at maxWait so a distant or bogus reset
// header can never stall a caller for longer than that.
func (g *Governor) WaitDuration(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.remaining > waitThreshold {
		return 0
	}
	if g.resetAt.IsZero() || !g.resetAt.After(now) {
		return 0
	}
	wait := g.resetAt.Sub(now)
	if wait > maxWait {
		return maxWait
	}
	return wait
}
