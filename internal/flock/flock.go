// Package flock provides a blocking, timeout-bounded inter-process file
// lock on the mirror entry's lock file (spec.md §3, §4.D "Concurrency
// rules"). It is the first half of the two-level locking scheme; the
// second half is internal/lock's per-key intra-process mutex.
package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimeout is returned when the lock could not be acquired within the
// configured timeout.
var ErrTimeout = errors.New("flock: timed out waiting for lock")

// Lock holds an open file handle with an OS-level advisory lock on it.
// Unlock releases the lock and closes the handle. The zero value is not
// usable; obtain a Lock via Acquire.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if needed, mode 0644 per spec.md §4.B) the lock
// file at path and blocks until the exclusive advisory lock is obtained,
// ctx is cancelled, or timeout elapses (timeout <= 0 waits indefinitely).
// It returns ErrTimeout, wrapped, on timeout.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("flock: unable to open lock file %q: %w", path, err)
	}

	lockCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := lockFile(lockCtx, f); err != nil {
		f.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q", ErrTimeout, path)
		}
		return nil, fmt.Errorf("flock: unable to lock %q: %w", path, err)
	}

	return &Lock{file: f}, nil
}

// Unlock releases the advisory lock and closes the underlying file handle.
// Kernel semantics also release the lock automatically on process exit
// (spec.md §5 "Cancellation semantics"), so Unlock is a courtesy for the
// common path, not the only way the lock is ever released.
func (l *Lock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	return err
}
