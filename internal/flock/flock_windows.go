//go:build windows

package flock

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

const pollInterval = 50 * time.Millisecond

func lockFile(ctx context.Context, f *os.File) error {
	handle := windows.Handle(f.Fd())
	ol := new(windows.Overlapped)

	for {
		err := windows.LockFileEx(handle, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, ol)
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func unlockFile(f *os.File) error {
	handle := windows.Handle(f.Fd())
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(handle, 0, 1, 0, ol)
}
