package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Services receive its NowFunc so
// tests can pin created_at/updated_at stamps and session expiry to known
// instants.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at the given instant. A zero start pins the clock
// to the shared ReferenceTime so fixtures and clock agree on "today".
func NewClock(start time.Time) *Clock {
	c := &Clock{now: start}
	if start.IsZero() {
		c.now = ReferenceTime()
	}
	return c
}

// Now reports the instant the clock currently points at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc adapts the clock to the func() time.Time shape services expect.
// A nil clock degrades to the real time source.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set repositions the clock to an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and reports the new instant. Tests
// use it to cross session-TTL boundaries without sleeping.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Current is a read-only alias for Now, for assertions that only observe.
func (c *Clock) Current() time.Time {
	return c.Now()
}
