package scheduler

import "errors"

// ErrFacilityUnavailable is returned by facilities that cannot schedule
// background work in the current environment.
var ErrFacilityUnavailable = errors.New("background facility unavailable")

// Request describes one background task submission. Title and Subtitle feed
// the facility's system-rendered progress surface.
type Request struct {
	Identifier string
	Title      string
	Subtitle   string
}

// Handle is the facility-provided handle for one launched task. It doubles
// as the progress surface attached to the task's context.
type Handle interface {
	ProgressSurface

	// SetExpirationHandler installs the callback the facility invokes when it
	// revokes execution time before the work finishes.
	SetExpirationHandler(fn func())

	// MarkCompleted tells the facility the task finished.
	MarkCompleted(success bool)
}

// LaunchHandler is invoked by the facility when a previously submitted
// request is granted execution time.
type LaunchHandler func(Handle)

// Facility is the OS background-execution collaborator. Register installs
// the launch handler for an identifier; Submit asks the facility to schedule
// a run; Cancel withdraws a pending submission. Registration and submission
// may fail in environments without background scheduling; the scheduler
// recovers locally and the failure is never surfaced to callers.
type Facility interface {
	Register(identifier string, launch LaunchHandler) error
	Submit(req Request) error
	Cancel(identifier string)
}

// Unavailable returns a Facility whose submissions always fail, forcing the
// foreground fallback. It is the explicit stand-in for environments with no
// background scheduling support.
func Unavailable() Facility {
	return unavailableFacility{}
}

type unavailableFacility struct{}

func (unavailableFacility) Register(string, LaunchHandler) error { return nil }
func (unavailableFacility) Submit(Request) error                 { return ErrFacilityUnavailable }
func (unavailableFacility) Cancel(string)                        {}
