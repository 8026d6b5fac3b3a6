package engine

import "sync"

// serialRunner executes fallback thunks strictly one at a time in submission
// order. When the background facility is unavailable every transfer runs
// through here, so foreground downloads never compete for bandwidth or disk.
type serialRunner struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func newSerialRunner() *serialRunner {
	return &serialRunner{}
}

// Run appends the thunk to the FIFO queue and starts the drain goroutine if
// one is not already running. Advancing to the next thunk happens only when
// the current one returns.
func (r *serialRunner) Run(thunk func()) {
	r.mu.Lock()
	r.queue = append(r.queue, thunk)
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.drain()
}

func (r *serialRunner) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.running = false
			r.mu.Unlock()
			return
		}
		thunk := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		thunk()
	}
}
