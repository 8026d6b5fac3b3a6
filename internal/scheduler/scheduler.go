package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/barge-dl/barge/internal/utils"
)

// Work is one schedulable unit. It must poll ctx and tc cooperatively at
// bounded intervals. Its error is its own result: it is reported to the
// facility handle and logged, never surfaced through Schedule.
type Work func(ctx context.Context, tc *TaskContext) error

// FallbackRunner decides how foreground-fallback work executes. The default
// runner starts each thunk on its own goroutine; the download engine injects
// a serialized FIFO runner so fallback transfers run one at a time.
type FallbackRunner interface {
	Run(thunk func())
}

type goRunner struct{}

func (goRunner) Run(thunk func()) { go thunk() }

type entryState int

const (
	entryPending entryState = iota
	entryActive
)

type entry struct {
	id     string
	title  string
	work   Work
	tc     *TaskContext
	state  entryState
	ctx    context.Context    // set once Active
	cancel context.CancelFunc // set once Active
}

// Scheduler is the registry of named continuable background tasks. At most
// one entry exists per identifier at a time. Entries move
// None -> Pending -> Active -> removed; the foreground-fallback path skips
// Pending entirely.
type Scheduler struct {
	mu         sync.Mutex
	entries    map[string]*entry
	registered map[string]bool
	facility   Facility
	fallback   FallbackRunner
	logger     *log.Logger
	wg         sync.WaitGroup
}

type Option func(*Scheduler)

// WithFallbackRunner replaces the default goroutine-per-task fallback
// executor.
func WithFallbackRunner(r FallbackRunner) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.fallback = r
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a scheduler around the given facility. A nil facility behaves
// like one whose submissions always fail: every task runs in the foreground.
func New(facility Facility, opts ...Option) *Scheduler {
	s := &Scheduler{
		entries:    make(map[string]*entry),
		registered: make(map[string]bool),
		facility:   facility,
		fallback:   goRunner{},
		logger:     utils.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers work under id and returns false when an entry for id is
// already pending or active. Facility registration or submission failures
// are recovered by running the work in the foreground immediately; the
// return value does not distinguish the two paths.
func (s *Scheduler) Schedule(id, title string, work Work) bool {
	s.mu.Lock()
	if _, exists := s.entries[id]; exists {
		s.mu.Unlock()
		return false
	}
	e := &entry{id: id, title: title, work: work, tc: NewTaskContext(), state: entryPending}
	s.entries[id] = e
	s.wg.Add(1)
	s.mu.Unlock()

	if s.facility != nil {
		if err := s.ensureRegistered(id); err != nil {
			s.logger.Debug("background registration failed", "id", id, "err", err)
		} else if err := s.facility.Submit(Request{Identifier: id, Title: title, Subtitle: id}); err != nil {
			s.logger.Debug("background submission failed, running in foreground", "id", id, "err", err)
		} else {
			return true
		}
	}

	s.runForeground(id)
	return true
}

// Cancel cancels the entry for id. A pending entry is removed outright and
// its work never executes; an active entry is cancelled cooperatively and
// reaped when its work returns. Unknown ids are ignored.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	if e.state == entryPending {
		delete(s.entries, id)
		s.mu.Unlock()

		e.tc.Cancel()
		if s.facility != nil {
			s.facility.Cancel(id)
		}
		s.wg.Done()
		return
	}

	cancel := e.cancel
	s.mu.Unlock()

	e.tc.Cancel()
	if cancel != nil {
		cancel()
	}
}

// IsRunning reports whether an entry (pending or active) exists for id.
func (s *Scheduler) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Context returns the TaskContext for id, or nil once the entry is gone.
func (s *Scheduler) Context(id string) *TaskContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.tc
	}
	return nil
}

// Wait blocks until every entry has been reaped or ctx expires.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureRegistered installs the launch handler for id exactly once. The
// handler table is lazily populated; re-scheduling an identifier does not
// register it again. Facilities must not invoke launch handlers from inside
// Register.
func (s *Scheduler) ensureRegistered(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered[id] {
		return nil
	}
	if err := s.facility.Register(id, func(h Handle) { s.launch(id, h) }); err != nil {
		return err
	}
	s.registered[id] = true
	return nil
}

// launch handles the facility granting execution time to a submitted
// request: Pending -> Active, handle attached as the progress surface,
// expiration folded into cancellation, then the work goroutine starts.
func (s *Scheduler) launch(id string, h Handle) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.state != entryPending {
		s.mu.Unlock()
		if h != nil {
			h.MarkCompleted(false)
		}
		return
	}
	s.activateLocked(e)
	s.mu.Unlock()

	if h != nil {
		e.tc.AttachSurface(h)
		h.SetExpirationHandler(func() { s.Cancel(id) })
	}
	go s.execute(e, h)
}

// runForeground moves a pending entry straight to Active and hands it to the
// fallback runner.
func (s *Scheduler) runForeground(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.state != entryPending {
		s.mu.Unlock()
		return
	}
	s.activateLocked(e)
	s.mu.Unlock()

	s.fallback.Run(func() { s.execute(e, nil) })
}

func (s *Scheduler) activateLocked(e *entry) {
	e.state = entryActive
	e.ctx, e.cancel = context.WithCancel(context.Background())
}

func (s *Scheduler) execute(e *entry, h Handle) {
	defer s.reap(e.id)

	var err error
	if e.tc.IsCancelled() {
		// Cancelled while queued behind the fallback runner: the work closure
		// is never invoked.
		err = context.Canceled
	} else {
		err = e.work(e.ctx, e.tc)
	}

	if h != nil {
		h.MarkCompleted(err == nil)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("task finished with error", "id", e.id, "err", err)
	}
}

func (s *Scheduler) reap(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		if e.cancel != nil {
			e.cancel()
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if ok {
		s.wg.Done()
	}
}
