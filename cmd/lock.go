package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/barge-dl/barge/internal/config"
)

// ErrAlreadyRunning is returned when another barge process holds the
// instance lock.
var ErrAlreadyRunning = errors.New("barge is already running")

// acquireInstanceLock takes the single-instance lock on the state directory.
// Transfer commands hold it for their lifetime so two processes never race
// on the same records.
func acquireInstanceLock() (func(), error) {
	if err := os.MkdirAll(config.StateDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(filepath.Join(config.StateDir(), "barge.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	return func() { _ = lock.Unlock() }, nil
}
