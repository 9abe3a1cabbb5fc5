// Package fsutil collects the plain filesystem bookkeeping the fetch
// engine and reference cache need around git's own file operations:
// emptiness checks, purge-except-dotdirs, and recreate-from-scratch. It is
// built on github.com/spf13/afero so callers (and their tests) can swap in
// an in-memory filesystem instead of touching disk.
package fsutil

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
)

const defaultDirMode os.FileMode = 0755

// DirIsEmpty reports whether path exists and contains no entries. A
// non-existent path is not considered empty; callers that want
// "missing-or-empty" should check os.IsNotExist separately.
func DirIsEmpty(fs afero.Fs, path string) (bool, error) {
	dirents, err := afero.ReadDir(fs, path)
	if err != nil {
		return false, err
	}
	return len(dirents) == 0, nil
}

// Recreate removes path and any children, then creates it fresh. The fetch
// engine's purge-on-retry does not call it; it uses PurgeExceptDotEntries.
func Recreate(fs afero.Fs, path string) error {
	if err := fs.RemoveAll(path); err != nil {
		return fmt.Errorf("fsutil: unable to delete %q: %w", path, err)
	}
	if err := fs.MkdirAll(path, defaultDirMode); err != nil {
		return fmt.Errorf("fsutil: unable to create %q: %w", path, err)
	}
	return nil
}

// RemoveTree forcibly removes path and everything under it; a non-existent
// path is not an error. The reference cache's eviction does not call it; it
// uses os.RemoveAll directly.
func RemoveTree(fs afero.Fs, path string) error {
	if err := fs.RemoveAll(path); err != nil {
		return fmt.Errorf("fsutil: unable to remove tree %q: %w", path, err)
	}
	return nil
}

// PurgeExceptDotEntries removes every entry directly under dir except "."
// and "..", leaving dir itself in place. Used before a retried clone lands
// in a destination that still holds detritus from a failed attempt
// (SPEC_FULL.md §4.E step 2.a).
func PurgeExceptDotEntries(fs afero.Fs, dir string, log *slog.Logger) error {
	dirents, err := afero.ReadDir(fs, dir)
	if err != nil {
		return err
	}

	var errs []error
	for _, fi := range dirents {
		p := dir + string(os.PathSeparator) + fi.Name()
		if err := fs.RemoveAll(p); err != nil {
			log.Error("fsutil: failed to remove entry while purging destination", "path", p, "err", err)
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("fsutil: %d error(s) purging %q: %v", len(errs), dir, errs)
	}
	return nil
}
