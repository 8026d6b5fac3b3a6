package engine

import "time"

// Clock abstracts wall-clock reads so the progress throttle is testable with
// a manually advanced clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
