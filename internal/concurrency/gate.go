// Package concurrency provides the bounded fan-out primitive every scan
// stage uses to call the host or a provider without overrunning either
// side's capacity, generalized from the ad hoc WaitGroup-plus-buffered-
// channel fan-out in the teacher's review orchestrator into a reusable,
// throttle-aware semaphore.
package concurrency

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of in-flight operations and can be throttled
// down (on sustained upstream pressure) or allowed to recover back up,
// between a floor and the originally configured ceiling.
type Gate struct {
	mu      sync.Mutex
	sem     *semaphore.Weighted
	current int64
	floor   int64
	ceiling int64
}

// NewGate constructs a Gate starting at ceiling permits, never
// throttling below floor.
func NewGate(ceiling, floor int) *Gate {
	if ceiling < 1 {
		ceiling = 1
	}
	if floor < 1 {
		floor = 1
	}
	if floor > ceiling {
		floor = ceiling
	}
	return &Gate{
		sem:     semaphore.NewWeighted(int64(ceiling)),
		current: int64(ceiling),
		floor:   int64(floor),
		ceiling: int64(ceiling),
	}
}

// Do runs fn while holding one permit, blocking until one is available
// or ctx is canceled.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn()
}

// Throttle halves the current permit ceiling (never below floor),
// re-weighting the underlying semaphore. Call this after observing
// sustained rate-limit pressure.
func (g *Gate) Throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.current / 2
	if next < g.floor {
		next = g.floor
	}
	g.resize(next)
}

// Recover grows the current permit ceiling back toward the original
// ceiling, one step at a time, after upstream pressure subsides.
func (g *Gate) Recover() {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.current * 2
	if next > g.ceiling {
		next = g.ceiling
	}
	g.resize(next)
}

func (g *Gate) resize(next int64) {
	if next == g.current {
		return
	}
	g.sem = semaphore.NewWeighted(next)
	g.current = next
}

// CurrentLimit returns the active permit ceiling, useful for logging.
func (g *Gate) CurrentLimit() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Counter is a simple atomic counter used by callers to track in-flight
// operations for observability without a full Gate.
type Counter struct{ n int64 }

func (c *Counter) Inc() int64 { return atomic.AddInt64(&c.n, 1) }
func (c *Counter) Dec() int64 { return atomic.AddInt64(&c.n, -1) }
func (c *Counter) Load() int64 { return atomic.LoadInt64(&c.n) }
