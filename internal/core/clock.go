package core

import (
	"sync"
	"time"
)

// Clock is the time source of the runtime context. Implementations must be
// safe for concurrent use.
type Clock interface {
	Now() time.Time
}

// WallClock reads the system time.
type WallClock struct{}

// Now returns the current UTC time.
func (WallClock) Now() time.Time {
	return time.Now().UTC()
}

// SimClock is a settable clock for deterministic runs and tests.
type SimClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewSimClock creates a simulated clock starting at the given time.
func NewSimClock(start time.Time) *SimClock {
	return &SimClock{now: start.UTC()}
}

// Now returns the current simulated time.
func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the simulated time forward.
func (c *SimClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set replaces the simulated time. Moving backwards is allowed for replays.
func (c *SimClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
