// Package fastclone is the Top-level Orchestrator (spec.md §4.F): it
// validates the caller's inputs, establishes the protocol allow-list, and
// drives the Fetch Engine. The cache root is created by mirror.New, not here.
package fastclone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/utilitywarehouse/git-fastclone/fetch"
	"github.com/utilitywarehouse/git-fastclone/giturl"
)

// defaultAllowedProtocols is the allow-list installed via GIT_ALLOW_PROTOCOL
// when the caller's environment does not already set one (spec.md §6).
const defaultAllowedProtocols = "file:git:http:https:ssh"

// Options mirrors the CLI surface described in spec.md §6.
type Options struct {
	URL  string
	Dest string

	Branch string

	ExtraConfig []string

	SparsePaths []string // non-empty enables sparse mode

	// AllowedProtocols is the defaults-file fallback for GIT_ALLOW_PROTOCOL
	// (SPEC_FULL.md §4.I): consulted only when the caller's environment
	// does not already set GIT_ALLOW_PROTOCOL explicitly. Empty means
	// "no defaults file value", falling through to defaultAllowedProtocols.
	AllowedProtocols string

	Engine *fetch.Engine
}

// Run validates opts and drives the Fetch Engine's clone. It is the single
// entry point cmd/git-fastclone's main wires up to kong-parsed flags.
func Run(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return errMissingURL
	}
	if opts.Engine == nil {
		return errors.New("fastclone: Engine must not be nil")
	}

	sparse := len(opts.SparsePaths) > 0
	if sparse && opts.Branch == "" {
		return errors.New("fastclone: --sparse-paths requires --branch")
	}

	dest := opts.Dest
	if dest == "" {
		dest = giturl.DefaultDestination(opts.URL)
		if dest == "" {
			return fmt.Errorf("fastclone: unable to derive a destination directory from %q; pass one explicitly", opts.URL)
		}
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("fastclone: unable to resolve destination path: %w", err)
	}

	setProtocolAllowList(opts.AllowedProtocols)

	return opts.Engine.Clone(ctx, opts.URL, absDest, fetch.CloneOptions{
		Rev:         opts.Branch,
		ExtraConfig: opts.ExtraConfig,
		Sparse:      sparse,
		SparsePaths: opts.SparsePaths,
	})
}

// errMissingURL is returned when the positional URL argument was not
// supplied; the CLI translates this to exit code 129 (spec.md §6).
var errMissingURL = errors.New("fastclone: missing required <url> argument")

// ErrMissingURL reports whether err is (or wraps) the missing-URL
// condition, so the CLI entrypoint can map it to exit code 129 without
// string-matching.
func ErrMissingURL(err error) bool {
	return errors.Is(err, errMissingURL)
}

// setProtocolAllowList sets GIT_ALLOW_PROTOCOL unless the caller's
// environment already defines one (spec.md §4.F, §6). Precedence below that
// is the defaults-file value (fromDefaults, SPEC_FULL.md §4.I), falling
// back to defaultAllowedProtocols when fromDefaults is empty.
func setProtocolAllowList(fromDefaults string) {
	if _, set := os.LookupEnv("GIT_ALLOW_PROTOCOL"); set {
		return
	}
	allowed := defaultAllowedProtocols
	if fromDefaults != "" {
		allowed = fromDefaults
	}
	os.Setenv("GIT_ALLOW_PROTOCOL", allowed)
}

// CacheRoot resolves the reference cache root directory: REFERENCE_REPO_DIR
// if set, otherwise a platform-appropriate temp location (spec.md §6).
func CacheRoot() string {
	if root := os.Getenv("REFERENCE_REPO_DIR"); root != "" {
		return root
	}
	return filepath.Join(os.TempDir(), "git-fastclone", "reference")
}

// SplitSparsePaths splits a comma-separated --sparse-paths flag value into
// individual paths, trimming whitespace and dropping empty entries.
func SplitSparsePaths(raw string) []string {
	if raw == "" {
		return nil
	}
	var paths []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
