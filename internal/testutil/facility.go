package testutil

import (
	"sync"

	"github.com/barge-dl/barge/internal/scheduler"
)

// FakeHandle is a scripted facility handle. Tests trigger expiration and
// inspect mirrored progress through it.
type FakeHandle struct {
	mu         sync.Mutex
	identifier string
	completed  int64
	total      int64
	expiration func()
	finished   bool
	success    bool
}

func (h *FakeHandle) Identifier() string { return h.identifier }

func (h *FakeHandle) SetProgress(completed, total int64) {
	h.mu.Lock()
	h.completed, h.total = completed, total
	h.mu.Unlock()
}

// Progress returns the last mirrored (completed, total) pair.
func (h *FakeHandle) Progress() (int64, int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed, h.total
}

func (h *FakeHandle) SetExpirationHandler(fn func()) {
	h.mu.Lock()
	h.expiration = fn
	h.mu.Unlock()
}

// Expire invokes the installed expiration handler, simulating the OS
// revoking execution time. No-op when none is installed.
func (h *FakeHandle) Expire() {
	h.mu.Lock()
	fn := h.expiration
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *FakeHandle) MarkCompleted(success bool) {
	h.mu.Lock()
	h.finished = true
	h.success = success
	h.mu.Unlock()
}

// Completed reports whether MarkCompleted was called and with what result.
func (h *FakeHandle) Completed() (finished, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished, h.success
}

// FakeFacility is a scripted background-execution collaborator. By default
// submissions are accepted but never launched; tests drive launches manually
// with Launch, or force the foreground fallback with FailSubmit.
type FakeFacility struct {
	mu         sync.Mutex
	FailSubmit bool // every Submit returns ErrFacilityUnavailable
	handlers   map[string]scheduler.LaunchHandler
	submitted  []string
	cancelled  []string
	registers  int
}

func NewFakeFacility() *FakeFacility {
	return &FakeFacility{handlers: make(map[string]scheduler.LaunchHandler)}
}

func (f *FakeFacility) Register(identifier string, launch scheduler.LaunchHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	f.handlers[identifier] = launch
	return nil
}

func (f *FakeFacility) Submit(req scheduler.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSubmit {
		return scheduler.ErrFacilityUnavailable
	}
	f.submitted = append(f.submitted, req.Identifier)
	return nil
}

func (f *FakeFacility) Cancel(identifier string) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, identifier)
	f.mu.Unlock()
}

// Launch simulates the facility granting execution time to a submitted
// identifier. Returns the handle given to the scheduler, or nil when no
// handler is registered for the identifier.
func (f *FakeFacility) Launch(identifier string) *FakeHandle {
	f.mu.Lock()
	launch := f.handlers[identifier]
	f.mu.Unlock()

	if launch == nil {
		return nil
	}
	h := &FakeHandle{identifier: identifier}
	launch(h)
	return h
}

// Submitted returns the identifiers submitted so far, in order.
func (f *FakeFacility) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.submitted))
	copy(out, f.submitted)
	return out
}

// Cancelled returns the identifiers withdrawn so far, in order.
func (f *FakeFacility) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancelled))
	copy(out, f.cancelled)
	return out
}

// Registers returns how many times Register was called.
func (f *FakeFacility) Registers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers
}
