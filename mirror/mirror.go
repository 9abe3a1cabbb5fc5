// Package mirror is the Reference Cache (spec.md §4.D): it keeps a bare
// mirror per URL under a cache root, updates each mirror at most once per
// process run, serialises access to a given mirror across goroutines (via
// an intra-process mutex) and processes (via a file lock), and evicts a
// mirror on corruption so the next caller re-clones from scratch.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-set/v3"
	"golang.org/x/sync/singleflight"

	"github.com/utilitywarehouse/git-fastclone/giturl"
	"github.com/utilitywarehouse/git-fastclone/internal/classify"
	"github.com/utilitywarehouse/git-fastclone/internal/execx"
	"github.com/utilitywarehouse/git-fastclone/internal/flock"
	"github.com/utilitywarehouse/git-fastclone/internal/lock"
	"github.com/utilitywarehouse/git-fastclone/internal/sublist"
	"github.com/utilitywarehouse/git-fastclone/metrics"
)

// Body is the work a caller performs once a mirror is present and fresh.
// attempt is 0 on the first try and 1 on the single retry permitted after a
// retriable failure (spec.md §4.D with_mirror).
type Body func(mirrorDir string, attempt int) error

// Cache is a Reference Cache instance. The zero value is not usable;
// construct with New.
type Cache struct {
	cfg Config

	freshMu   sync.Mutex
	freshness map[string]bool

	mutexes *lock.KeyedMutexes
	updates singleflight.Group
}

// New returns a Cache rooted at cfg.Root, creating the root directory if it
// does not exist.
func New(cfg Config) (*Cache, error) {
	if cfg.Root == "" {
		return nil, errors.New("mirror: Root must not be empty")
	}
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("mirror: unable to create cache root %q: %w", cfg.Root, err)
	}
	return &Cache{
		cfg:       cfg,
		freshness: make(map[string]bool),
		mutexes:   lock.NewKeyedMutexes(),
	}, nil
}

// WithMirror ensures the mirror for url is present and fresh, then invokes
// body while holding the per-URL intra-process mutex. If body fails with an
// error whose captured output the Failure Classifier marks retriable, the
// mirror is evicted and the whole sequence (ensure-fresh, body) is retried
// once more; a second retriable failure is surfaced to the caller
// (spec.md §4.D with_mirror).
func (c *Cache) WithMirror(ctx context.Context, url string, failHard bool, body Body) error {
	key := giturl.Key(url)
	local := giturl.IsLocalPath(url)
	dir := giturl.MirrorDir(url, c.cfg.Root, local)

	fl, err := c.lockFile(ctx, url, local)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	mu := c.mutexes.For(key)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.ensureFresh(ctx, url, key, dir, local, failHard, attempt); err != nil {
			return err
		}

		err := body(dir, attempt)
		if err == nil {
			return nil
		}

		if !retriable(err) {
			return err
		}

		lastErr = err
		if attempt == 0 {
			metrics.RecordRetry(key)
		}
		c.evict(dir, key)
	}
	return lastErr
}

// Update is the freshness path used standalone by prefetch workers
// (spec.md §4.D "update"): it acquires both locks for url's key and, if the
// key is not already recorded fresh this run, clones/updates the mirror. It
// does not invoke a caller body and is safe to call from a fire-and-forget
// goroutine.
func (c *Cache) Update(ctx context.Context, url string, failHard bool) error {
	key := giturl.Key(url)
	local := giturl.IsLocalPath(url)
	dir := giturl.MirrorDir(url, c.cfg.Root, local)

	fl, err := c.lockFile(ctx, url, local)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	mu := c.mutexes.For(key)
	mu.Lock()
	defer mu.Unlock()

	return c.ensureFresh(ctx, url, key, dir, local, failHard, 0)
}

// PersistSubmodules writes urls as parentURL's known direct submodule list
// (spec.md §4.E "update_submodule_list"), under the same file lock and
// per-key mutex that guards the rest of parentURL's mirror entry.
func (c *Cache) PersistSubmodules(ctx context.Context, parentURL string, urls []string) error {
	local := giturl.IsLocalPath(parentURL)

	fl, err := c.lockFile(ctx, parentURL, local)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	mu := c.mutexes.For(giturl.Key(parentURL))
	mu.Lock()
	defer mu.Unlock()

	file := giturl.SubmodulesFile(parentURL, c.cfg.Root, local)
	return sublist.Write(file, urls)
}

func (c *Cache) lockFile(ctx context.Context, url string, local bool) (*flock.Lock, error) {
	path := giturl.LockFileName(url, c.cfg.Root, local)
	return flock.Acquire(ctx, path, c.cfg.LockTimeout)
}

// ensureFresh implements the body of spec.md's `update`: launch prefetch
// workers for known submodules (best-effort, fire-and-forget), then, unless
// the freshness map already records key as updated this run, delegate to
// storeUpdated.
func (c *Cache) ensureFresh(ctx context.Context, url, key, dir string, local, failHard bool, attempt int) error {
	if c.cfg.Prefetch {
		c.prefetchSubmodules(url, dir, local)
	}

	c.freshMu.Lock()
	fresh := c.freshness[key]
	c.freshMu.Unlock()

	if fresh {
		metrics.RecordCacheHit()
		return nil
	}
	metrics.RecordCacheMiss()

	// Every caller of ensureFresh already holds the key's file lock and
	// per-key mutex, so same-key calls on this Cache are serialised and the
	// singleflight group never has two callers in flight for one key. A
	// WithMirror/prefetch race for the same key still yields one
	// clone/update pair because the second caller finds the key fresh above.
	_, err, _ := c.updates.Do(key, func() (any, error) {
		return nil, c.storeUpdated(ctx, url, dir, key, local, failHard, attempt)
	})
	return err
}

func (c *Cache) prefetchSubmodules(url, dir string, local bool) {
	file := giturl.SubmodulesFile(url, c.cfg.Root, local)
	urls, err := sublist.Read(file)
	if err != nil || len(urls) == 0 {
		return
	}
	// A submodule list can carry the same URL more than once (two paths
	// pinned to the same upstream); dedup before spawning warm-up
	// workers so a repeated URL only ever gets one prefetch goroutine.
	for _, subURL := range set.From(urls).Slice() {
		go func(u string) {
			_ = c.Update(context.Background(), u, false)
		}(subURL)
	}
}

// storeUpdated runs the optional pre-clone hook, clones the mirror if
// missing, then runs `remote update --prune`. On success the key is marked
// fresh. On failure, a non-authentication error evicts the mirror entry;
// failHard controls whether the error is re-raised or swallowed
// (spec.md §4.D "store_updated").
func (c *Cache) storeUpdated(ctx context.Context, url, dir, key string, local, failHard bool, attempt int) error {
	log := c.cfg.logger()
	start := time.Now()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := c.runPreCloneHook(ctx, url, dir, attempt); err != nil {
			log.Warn("mirror: pre-clone hook failed, continuing with clone", "repo", key, "err", err)
		}
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := c.clone(ctx, url, dir, local); err != nil {
			return c.handleStoreUpdatedFailure(ctx, dir, key, failHard, err)
		}
	}

	if err := c.remoteUpdate(ctx, url, dir, local); err != nil {
		return c.handleStoreUpdatedFailure(ctx, dir, key, failHard, err)
	}

	c.freshMu.Lock()
	c.freshness[key] = true
	c.freshMu.Unlock()

	metrics.RecordMirrorOperation(key, "success")
	metrics.ObserveSubmoduleFetchDuration(key, start)
	return nil
}

func (c *Cache) handleStoreUpdatedFailure(ctx context.Context, dir, key string, failHard bool, cause error) error {
	metrics.RecordMirrorOperation(key, "failure")

	if !authError(cause) {
		c.evict(dir, key)
	}
	if failHard {
		return cause
	}
	c.cfg.logger().Warn("mirror: update failed, continuing without fresh mirror", "repo", key, "err", cause)
	return nil
}

func (c *Cache) clone(ctx context.Context, url, dir string, local bool) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("mirror: unable to create cache entry parent dir: %w", err)
	}
	env, err := c.environmentFor(ctx, url, filepath.Dir(dir))
	if err != nil {
		return err
	}
	_, err = execx.Run(ctx, execx.Options{
		Argv:           []string{c.cfg.gitBinary(), "clone", "--mirror", url, dir},
		Env:            env,
		Quiet:          c.cfg.Quiet,
		PrintOnFailure: c.cfg.PrintOnFailure,
		Logger:         c.cfg.logger(),
	})
	return err
}

func (c *Cache) remoteUpdate(ctx context.Context, url, dir string, local bool) error {
	env, err := c.environmentFor(ctx, url, dir)
	if err != nil {
		return err
	}
	_, err = execx.Run(ctx, execx.Options{
		Argv:           []string{c.cfg.gitBinary(), "remote", "update", "--prune"},
		Dir:            dir,
		Env:            env,
		Quiet:          c.cfg.Quiet,
		PrintOnFailure: c.cfg.PrintOnFailure,
		Logger:         c.cfg.logger(),
	})
	return err
}

// runPreCloneHook invokes the configured hook as
// `SCRIPT url mirror_dir attempt_number`, directly (no shell), immediately
// before the first `clone --mirror` for url (spec.md §6).
func (c *Cache) runPreCloneHook(ctx context.Context, url, dir string, attempt int) error {
	if c.cfg.PreCloneHook == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return err
	}
	_, err := execx.Run(ctx, execx.Options{
		Argv:   []string{c.cfg.PreCloneHook, url, dir, strconv.Itoa(attempt)},
		Dir:    filepath.Dir(dir),
		Quiet:  c.cfg.Quiet,
		Logger: c.cfg.logger(),
	})
	return err
}

func (c *Cache) environmentFor(ctx context.Context, url, scriptDir string) ([]string, error) {
	if c.cfg.Credentials == nil {
		return nil, nil
	}
	return c.cfg.Credentials.EnvironmentFor(ctx, url, scriptDir)
}

// evict removes dir and clears key's freshness entry so the next caller
// re-clones from scratch (spec.md §4.D "Eviction").
func (c *Cache) evict(dir, key string) {
	if err := os.RemoveAll(dir); err != nil {
		c.cfg.logger().Error("mirror: failed to evict mirror directory", "repo", key, "path", dir, "err", err)
	}
	c.freshMu.Lock()
	delete(c.freshness, key)
	c.freshMu.Unlock()
	metrics.RecordEviction(key)
}

func retriable(err error) bool {
	var execErr *execx.Error
	if errors.As(err, &execErr) {
		return classify.Retriable(execErr.Output)
	}
	return false
}

func authError(err error) bool {
	var execErr *execx.Error
	if errors.As(err, &execErr) {
		return classify.AuthError(execErr.Output)
	}
	return false
}
