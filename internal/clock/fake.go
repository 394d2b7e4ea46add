package clock

import "time"

// FakeClock is a manually advanced Clock for tests. It only moves when
// Advance is called, so retention windows can be crossed deterministically.
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a FakeClock pinned to t, normalized to UTC.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
