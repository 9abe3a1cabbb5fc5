// Package fetch is the Fetch Engine (spec.md §4.E): drives the checkout
// clone against a warmed mirror, then recursively discovers and fetches
// submodules, fanning workers out with a bounded concurrency limit.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/utilitywarehouse/git-fastclone/giturl"
	"github.com/utilitywarehouse/git-fastclone/internal/execx"
	"github.com/utilitywarehouse/git-fastclone/internal/fsutil"
	"github.com/utilitywarehouse/git-fastclone/mirror"

	"github.com/spf13/afero"
)

const defaultSubmoduleWorkers = 8

// CloneOptions is the `extra_config`/sparse parameterisation of
// spec.md's top-level `clone(url, rev, dest, extra_config)`.
type CloneOptions struct {
	// Rev is the branch, tag, or commit to check out. Optional in normal
	// mode (the mirror/remote's default HEAD is used); required in
	// sparse mode (enforced by the orchestrator, spec.md §4.F).
	Rev string

	// ExtraConfig are `-c key=value` pairs passed to `clone`, ignored in
	// sparse mode (sparse clones never touch the remote directly).
	ExtraConfig []string

	Sparse      bool
	SparsePaths []string
}

// Engine is a Fetch Engine instance bound to a Reference Cache. The zero
// value is not usable; construct with New.
type Engine struct {
	cfg Config
	fs  afero.Fs
}

// New returns an Engine backed by cfg.Cache.
func New(cfg Config) (*Engine, error) {
	if cfg.Cache == nil {
		return nil, errors.New("fetch: Cache must not be nil")
	}
	if cfg.SubmoduleWorkers <= 0 {
		cfg.SubmoduleWorkers = defaultSubmoduleWorkers
	}
	return &Engine{cfg: cfg, fs: afero.NewOsFs()}, nil
}

// Clone is spec.md's top-level `clone(url, rev, dest, extra_config)`: it
// rejects a non-empty destination, warms the mirror and clones from it
// (retrying once through the mirror's own eviction/retry policy on a
// retriable failure), optionally checks out rev, and recurses into
// submodules.
func (e *Engine) Clone(ctx context.Context, url, dest string, opts CloneOptions) error {
	if exists, _ := afero.DirExists(e.fs, dest); exists {
		empty, err := fsutil.DirIsEmpty(e.fs, dest)
		if err != nil {
			return fmt.Errorf("fetch: unable to inspect destination %q: %w", dest, err)
		}
		if !empty {
			return fmt.Errorf("fetch: destination %q already exists and is not empty", dest)
		}
	}

	err := e.cfg.Cache.WithMirror(ctx, url, true, func(mirrorDir string, attempt int) error {
		if attempt > 0 {
			if empty, err := fsutil.DirIsEmpty(e.fs, dest); err == nil && !empty {
				if err := fsutil.PurgeExceptDotEntries(e.fs, dest, e.cfg.logger()); err != nil {
					return err
				}
			}
		}
		return e.cloneFromMirror(ctx, url, mirrorDir, dest, opts)
	})
	if err != nil {
		return err
	}

	if !opts.Sparse && opts.Rev != "" {
		if _, err := execx.Run(ctx, execx.Options{
			Argv:           []string{e.cfg.gitBinary(), "checkout", "--quiet", opts.Rev},
			Dir:            dest,
			Quiet:          e.cfg.Quiet,
			PrintOnFailure: e.cfg.PrintOnFailure,
			Logger:         e.cfg.logger(),
		}); err != nil {
			return err
		}
	}

	return e.updateSubmodules(ctx, dest, url)
}

func (e *Engine) cloneFromMirror(ctx context.Context, url, mirrorDir, dest string, opts CloneOptions) error {
	verbosity := "--quiet"
	if e.cfg.Verbose {
		verbosity = "--verbose"
	}

	if !opts.Sparse {
		argv := []string{e.cfg.gitBinary(), "clone", verbosity, "--reference", mirrorDir, url, dest}
		for _, cfg := range opts.ExtraConfig {
			argv = append(argv, "--config", cfg)
		}
		_, err := execx.Run(ctx, execx.Options{Argv: argv, Quiet: e.cfg.Quiet, PrintOnFailure: e.cfg.PrintOnFailure, Logger: e.cfg.logger()})
		return err
	}

	if _, err := execx.Run(ctx, execx.Options{
		Argv:           []string{e.cfg.gitBinary(), "clone", verbosity, "--no-checkout", mirrorDir, dest},
		Quiet:          e.cfg.Quiet,
		PrintOnFailure: e.cfg.PrintOnFailure,
		Logger:         e.cfg.logger(),
	}); err != nil {
		return err
	}

	if _, err := execx.Run(ctx, execx.Options{
		Argv:           []string{e.cfg.gitBinary(), "sparse-checkout", "init", "--cone"},
		Dir:            dest,
		Quiet:          e.cfg.Quiet,
		PrintOnFailure: e.cfg.PrintOnFailure,
		Logger:         e.cfg.logger(),
	}); err != nil {
		return err
	}

	setArgv := append([]string{e.cfg.gitBinary(), "sparse-checkout", "set"}, opts.SparsePaths...)
	if _, err := execx.Run(ctx, execx.Options{Argv: setArgv, Dir: dest, Quiet: e.cfg.Quiet, PrintOnFailure: e.cfg.PrintOnFailure, Logger: e.cfg.logger()}); err != nil {
		return err
	}

	_, err := execx.Run(ctx, execx.Options{
		Argv:           []string{e.cfg.gitBinary(), "checkout", opts.Rev},
		Dir:            dest,
		Quiet:          e.cfg.Quiet,
		PrintOnFailure: e.cfg.PrintOnFailure,
		Logger:         e.cfg.logger(),
	})
	return err
}

type submodule struct {
	Path string
	URL  string
}

// updateSubmodules is spec.md's `update_submodules(pwd, parent_url)`: it
// initialises and fetches each direct submodule concurrently (bounded by
// Config.SubmoduleWorkers), recurses into each, and persists the direct
// submodule URL list for future prefetch regardless of whether the fetches
// themselves all succeeded.
func (e *Engine) updateSubmodules(ctx context.Context, pwd, parentURL string) error {
	if _, err := os.Stat(filepath.Join(pwd, ".gitmodules")); os.IsNotExist(err) {
		return nil
	}

	out, err := execx.Run(ctx, execx.Options{
		Argv:   []string{e.cfg.gitBinary(), "submodule", "init"},
		Dir:    pwd,
		Quiet:  e.cfg.Quiet,
		Logger: e.cfg.logger(),
	})
	if err != nil {
		return fmt.Errorf("fetch: submodule init failed in %q: %w", pwd, err)
	}

	var submodules []submodule
	for _, line := range strings.Split(out, "\n") {
		parsed, ok := giturl.ParseSubmoduleLine(line)
		if !ok {
			continue
		}
		submodules = append(submodules, submodule{Path: parsed.Path, URL: parsed.URL})
	}
	if len(submodules) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.SubmoduleWorkers)

	urls := make([]string, len(submodules))
	for i, sm := range submodules {
		i, sm := i, sm
		urls[i] = sm.URL
		g.Go(func() error {
			return e.fetchSubmodule(gctx, pwd, sm)
		})
	}

	persistErr := e.cfg.Cache.PersistSubmodules(ctx, parentURL, urls)
	waitErr := g.Wait()
	if waitErr != nil {
		return waitErr
	}
	return persistErr
}

func (e *Engine) fetchSubmodule(ctx context.Context, pwd string, sm submodule) error {
	err := e.cfg.Cache.WithMirror(ctx, sm.URL, true, func(mirrorDir string, attempt int) error {
		_, err := execx.Run(ctx, execx.Options{
			Argv:           []string{e.cfg.gitBinary(), "submodule", "update", "--reference", mirrorDir, sm.Path},
			Dir:            pwd,
			Quiet:          e.cfg.Quiet,
			PrintOnFailure: e.cfg.PrintOnFailure,
			Logger:         e.cfg.logger(),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch: submodule %q: %w", sm.Path, err)
	}

	return e.updateSubmodules(ctx, filepath.Join(pwd, sm.Path), sm.URL)
}
