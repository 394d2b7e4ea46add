package clock

import "time"

// Clock abstracts wall-clock time so jobs and retention windows can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New returns the system clock.
func New() Clock { return systemClock{} }
