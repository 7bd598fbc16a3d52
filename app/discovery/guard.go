package discovery

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"
)

// RunGuard lets at most one discovery run proceed at a time. With a lock
// file configured the guard also excludes runs in other processes.
type RunGuard struct {
	mu       sync.Mutex
	lockPath string
}

func NewRunGuard(lockPath string) *RunGuard {
	return &RunGuard{lockPath: lockPath}
}

// Acquire never blocks. It returns ErrRunInProgress when the guard is held.
func (g *RunGuard) Acquire() (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrRunInProgress
	}

	if g.lockPath == "" {
		return g.mu.Unlock, nil
	}

	fileLock := flock.New(g.lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("failed to acquire lock file %s: %w", g.lockPath, err)
	}
	if !locked {
		g.mu.Unlock()
		return nil, ErrRunInProgress
	}

	return func() {
		_ = fileLock.Unlock()
		g.mu.Unlock()
	}, nil
}
