package scheduler

import "sync"

// surfaceUnits is the fixed unit scale used when mirroring fractional
// progress onto a host progress surface.
const surfaceUnits = 100

// ProgressSurface receives progress mirrored out of a TaskContext, typically
// a system-rendered indicator owned by the background facility.
type ProgressSurface interface {
	SetProgress(completed, total int64)
}

// TaskContext is the cancellation-flag-plus-progress handle shared between
// the scheduler and running work. A single mutex guards the triple so a
// progress value written from the work's goroutine and read from an
// observer's goroutine never tears.
type TaskContext struct {
	mu        sync.Mutex
	cancelled bool
	progress  float64
	surface   ProgressSurface
}

func NewTaskContext() *TaskContext {
	return &TaskContext{}
}

// Cancel marks the context cancelled. Idempotent. Running work observes the
// flag cooperatively at its next checkpoint; nothing is interrupted here.
func (c *TaskContext) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
}

// IsCancelled reports whether Cancel has been called.
func (c *TaskContext) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// ReportProgress stores v clamped to [0,1] and mirrors it to the attached
// surface, if any. The surface call happens outside the lock.
func (c *TaskContext) ReportProgress(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	c.mu.Lock()
	c.progress = v
	surface := c.surface
	c.mu.Unlock()

	if surface != nil {
		surface.SetProgress(int64(v*surfaceUnits+0.5), surfaceUnits)
	}
}

// Progress returns the last reported value.
func (c *TaskContext) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// AttachSurface wires a host progress surface to the context and pushes the
// current value to it once.
func (c *TaskContext) AttachSurface(s ProgressSurface) {
	c.mu.Lock()
	c.surface = s
	v := c.progress
	c.mu.Unlock()

	if s != nil {
		s.SetProgress(int64(v*surfaceUnits+0.5), surfaceUnits)
	}
}
