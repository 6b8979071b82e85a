package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long note runs and pastes wait for a lock.
const DefaultLockTimeout = 5 * time.Second

const lockRetryDelay = 100 * time.Millisecond

// ErrLockTimeout is returned when a lock could not be taken in time.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// LockPath returns the sidecar lock file for path. Editors that replace a
// note on save keep the sidecar, so the lock survives the rename.
func LockPath(path string) string {
	return path + ".lock"
}

// WithLock runs fn holding the exclusive lock of path. The parent directory
// is created if needed, so a paste target may not exist yet.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	return withFileLock(path, timeout, true, fn)
}

// WithReadLock runs fn holding a shared lock of path.
func WithReadLock(path string, timeout time.Duration, fn func() error) error {
	return withFileLock(path, timeout, false, fn)
}

func withFileLock(path string, timeout time.Duration, exclusive bool, fn func() error) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lockPath := LockPath(path)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", lockPath, err)
	}

	fileLock := flock.New(lockPath)
	try, mode := fileLock.TryRLockContext, "read"
	if exclusive {
		try, mode = fileLock.TryLockContext, "write"
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := try(ctx, lockRetryDelay)
	switch {
	case errors.Is(err, context.DeadlineExceeded), err == nil && !locked:
		return fmt.Errorf("%w: %s lock on %s after %s", ErrLockTimeout, mode, lockPath, timeout)
	case err != nil:
		return fmt.Errorf("acquiring %s lock on %s: %w", mode, lockPath, err)
	}
	defer fileLock.Unlock()

	return fn()
}
