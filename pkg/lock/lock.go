// Package lock keeps two backup runs from working on the same directories.
package lock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
)

// FileName is the lock file created in the working directory.
const FileName = "cback.lock"

// RunLock is an exclusive, non-blocking lock on a working directory.
type RunLock struct {
	path string
}

// New returns the run lock for workingDir.
func New(workingDir string) *RunLock {
	return &RunLock{path: filepath.Join(workingDir, FileName)}
}

// Path is the lock file location.
func (l *RunLock) Path() string {
	return l.path
}

// WithLock runs fn while holding the lock. It fails at once with
// ErrLockHeld when another process holds it.
func (l *RunLock) WithLock(fn func() error) error {
	lock := flock.New(l.path)

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to take run lock %s: %w", l.path, err)
	}
	if !locked {
		return errUtils.WithHint(
			fmt.Errorf("%w: %s", errUtils.ErrLockHeld, l.path),
			"wait for the running backup to finish, or remove a stale lock file",
		)
	}
	log.Trace("Acquired run lock", "path", l.path)

	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Trace("Failed to release run lock", "error", err, "path", l.path)
		}
	}()

	return fn()
}
