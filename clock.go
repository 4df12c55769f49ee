package governor

import "time"

// Clock abstracts time for window and sweep bookkeeping so tests can drive
// evaluation deterministically. The governor only ever asks for the current
// instant; it never sleeps on the clock.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
