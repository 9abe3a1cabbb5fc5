package fetch

import (
	"log/slog"

	"github.com/utilitywarehouse/git-fastclone/mirror"
)

// Config configures an Engine (spec.md §4.E Fetch Engine).
type Config struct {
	Cache *mirror.Cache

	// GitBinary is the git executable to invoke. Defaults to "git".
	GitBinary string

	// Quiet/Verbose are passed through to the clone/checkout commands;
	// Quiet also suppresses tee-ing subprocess output to stdout.
	Quiet   bool
	Verbose bool
	// PrintOnFailure emits a subprocess's captured output when it fails,
	// even under Quiet (spec.md §6 --print_git_errors).
	PrintOnFailure bool

	// SubmoduleWorkers bounds how many submodules are fetched
	// concurrently at any nesting level. Defaults to a sane fan-out
	// (see New) when zero.
	SubmoduleWorkers int

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
