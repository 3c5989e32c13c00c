// Package locksmith provides the cross-process global advisory lock guarding sprocket's data
// directory for the duration of any operation that may write to it (every `lock` flow). Acquirer
// source-level coalescing (two plugins sharing a source) is handled separately, in-process, by
// internal/acquire, which groups plugins by canonical source key so each source is acquired by a
// single goroutine.
package locksmith

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// pollInterval is how often flock.TryLockContext re-attempts acquisition while waiting.
const pollInterval = 50 * time.Millisecond

// GlobalLock guards the well-known lock file under the data directory. Adapted from sheldon's use
// of fs2's FileExt::lock_exclusive (main.rs) for the same purpose, using gofrs/flock as the
// cross-platform advisory-lock primitive on the Go side.
type GlobalLock struct {
	fl *flock.Flock
}

// New returns a GlobalLock for the file at path. The file is created if it doesn't exist; it
// holds no meaningful content and exists only as a lock target.
func New(path string) *GlobalLock {
	return &GlobalLock{fl: flock.New(path)}
}

// OnWait is called (if non-nil) exactly once if the lock isn't immediately available, so the
// caller can print sprocket's one-time "waiting for another instance" message (spec.md §5).
type OnWait func()

// Acquire blocks until the lock is held or ctx is canceled, invoking onWait at most once if the
// lock isn't immediately available.
func (g *GlobalLock) Acquire(ctx context.Context, onWait OnWait) error {
	locked, err := g.fl.TryLock()
	if err == nil && locked {
		return nil
	}

	if onWait != nil {
		onWait()
	}
	locked, err = g.fl.TryLockContext(ctx, pollInterval)
	if err != nil {
		return errors.Wrap(err, "couldn't acquire lock on data directory")
	}
	if !locked {
		return errors.New("couldn't acquire lock on data directory")
	}
	return nil
}

// Release releases the lock.
func (g *GlobalLock) Release() error {
	return errors.Wrap(g.fl.Unlock(), "couldn't release lock on data directory")
}
