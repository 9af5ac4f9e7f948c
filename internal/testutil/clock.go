package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant a DeterministicClock starts at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a fake wall clock for tests.
//
// Every call to Now advances the clock by a fixed step, so an operation
// bracketed by two Now calls always measures exactly one step. This keeps
// durations in results, logs and metrics reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	ticks int64
	step  time.Duration
}

// NewDeterministicClock creates a clock at Epoch advancing step per reading.
// A non-positive step defaults to one millisecond.
func NewDeterministicClock(step time.Duration) *DeterministicClock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &DeterministicClock{step: step}
}

// Now returns the current reading and advances the clock.
// The first call returns Epoch.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := Epoch.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return now
}

// Readings returns how many times Now has been called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
