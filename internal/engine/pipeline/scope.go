package pipeline

import (
	"errors"
	"os"
	"sync"
)

// Scope tracks temporary files created during a composite operation and
// removes them when released. Release runs on every exit path via defer, is
// idempotent, and tolerates files that are already gone.
type Scope struct {
	mu       sync.Mutex
	paths    []string
	released bool
}

func NewScope() *Scope {
	return &Scope{}
}

// Track registers a path for removal at release time.
func (s *Scope) Track(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

// Release removes every tracked file. A second Release is a no-op.
func (s *Scope) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
