package mirror

import (
	"log/slog"
	"time"

	"github.com/utilitywarehouse/git-fastclone/auth"
)

// Config configures a Cache (SPEC_FULL.md §4.D Reference Cache).
type Config struct {
	// Root is the cache root directory; created if missing.
	Root string

	// GitBinary is the git executable to invoke. Defaults to "git".
	GitBinary string

	// LockTimeout bounds how long WithMirror/Update waits to acquire the
	// inter-process file lock for a mirror entry. Zero means wait
	// indefinitely (spec.md §4.D).
	LockTimeout time.Duration

	// Prefetch enables fire-and-forget recursive `update` calls against
	// a mirror's last-known submodule URLs whenever that mirror itself
	// is updated (spec.md §4.D "update").
	Prefetch bool

	// PreCloneHook, if set, is invoked directly (no shell) as
	// "SCRIPT url mirror attempt" before the first clone of a mirror
	// whose directory does not yet exist. Its working directory is the
	// would-be mirror directory's parent.
	PreCloneHook string

	// Quiet suppresses live tee-ing of git output to stdout.
	Quiet bool
	// PrintOnFailure emits a subprocess's captured output when it fails,
	// even under Quiet (spec.md §6 --print_git_errors).
	PrintOnFailure bool
	// Verbose is passed through to `git clone --verbose` by callers that
	// build clone argv (the fetch engine); the cache itself does not read
	// it.
	Verbose bool

	// Credentials derives the environment overlay for remote operations.
	// Nil means no overlay is ever applied (suitable for local-only use
	// or tests).
	Credentials *auth.Credentials

	Logger *slog.Logger
}

func (c Config) gitBinary() string {
	if c.GitBinary == "" {
		return "git"
	}
	return c.GitBinary
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
