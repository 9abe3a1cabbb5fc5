// Command git-fastclone is a recursive checkout accelerator: it maintains
// a cache of bare mirror repositories and uses them as clone/submodule
// references, fetching submodules concurrently (spec.md §4.F, §6).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utilitywarehouse/git-fastclone/auth"
	gfconfig "github.com/utilitywarehouse/git-fastclone/config"
	"github.com/utilitywarehouse/git-fastclone/fastclone"
	"github.com/utilitywarehouse/git-fastclone/fetch"
	"github.com/utilitywarehouse/git-fastclone/internal/execx"
	"github.com/utilitywarehouse/git-fastclone/metrics"
	"github.com/utilitywarehouse/git-fastclone/mirror"
)

// CLI mirrors the flag surface of spec.md §6 plus SPEC_FULL.md §6's
// additions; kong.Parse fills it from argv and environment.
type CLI struct {
	URL  string `arg:"" optional:"" help:"Remote (or local) repository URL to clone."`
	Dest string `arg:"" optional:"" help:"Destination directory; derived from URL when omitted."`

	Branch         string `short:"b" help:"Revision to check out after clone; required in sparse mode."`
	Verbose        bool   `short:"v" help:"Live-stream subprocess output."`
	PrintGitErrors bool   `name:"print_git_errors" help:"Emit captured subprocess output only when a command fails."`
	Color          bool   `short:"c" help:"Colourise status lines."`
	ExtraConfig    []string `name:"config" help:"Extra --config passed to the outer clone. May be repeated."`
	LockTimeout    int    `name:"lock-timeout" help:"Seconds to wait for the mirror file lock; 0 waits forever."`
	PreCloneHook   string `name:"pre-clone-hook" help:"Executable invoked as 'SCRIPT URL MIRROR ATTEMPT_NUMBER' before the first clone of a URL."`
	SparsePaths    string `name:"sparse-paths" help:"Comma-separated cone-mode sparse-checkout paths."`

	DefaultsFile string `name:"defaults-file" env:"GIT_FASTCLONE_DEFAULTS" help:"Optional YAML file of fallback settings."`
	MetricsBind  string `name:"metrics-bind" help:"If set, serve Prometheus metrics on this address for the run's duration."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("git-fastclone"),
		kong.Description("Recursive git checkout accelerator backed by a reference mirror cache."),
		kong.UsageOnError(),
	)

	logger := newLogger(cli.Verbose, cli.Color)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli, logger); err != nil {
		if fastclone.ErrMissingURL(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(129)
		}
		logger.Error("git-fastclone failed", "err", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(ctx context.Context, cli CLI, logger *slog.Logger) error {
	defaults, err := loadDefaults(cli.DefaultsFile)
	if err != nil {
		return fmt.Errorf("git-fastclone: %w", err)
	}

	if cli.MetricsBind != "" {
		metrics.Enable("git_fastclone", prometheus.DefaultRegisterer)
		srv := &http.Server{Addr: cli.MetricsBind, Handler: promhttp.Handler()}
		go func() {
			logger.Info("serving metrics", "addr", cli.MetricsBind)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server terminated", "err", err)
			}
		}()
		defer srv.Close()
	}

	creds := auth.New(auth.Config{
		SSHKeyPath:              os.Getenv("GIT_FASTCLONE_SSH_KEY"),
		SSHKnownHostsPath:       os.Getenv("GIT_FASTCLONE_SSH_KNOWN_HOSTS"),
		Username:                os.Getenv("GIT_FASTCLONE_USERNAME"),
		Password:                os.Getenv("GIT_FASTCLONE_PASSWORD"),
		GithubAppID:             os.Getenv("GIT_FASTCLONE_GITHUB_APP_ID"),
		GithubAppInstallationID: os.Getenv("GIT_FASTCLONE_GITHUB_APP_INSTALLATION_ID"),
		GithubAppPrivateKeyPath: os.Getenv("GIT_FASTCLONE_GITHUB_APP_PRIVATE_KEY_PATH"),
	})

	lockTimeout := time.Duration(cli.LockTimeout) * time.Second
	if cli.LockTimeout == 0 {
		lockTimeout = defaults.LockTimeout
	}
	preCloneHook := cli.PreCloneHook
	if preCloneHook == "" {
		preCloneHook = defaults.PreCloneHook
	}
	cacheRoot := fastclone.CacheRoot()
	if env, set := os.LookupEnv("REFERENCE_REPO_DIR"); !set || env == "" {
		if defaults.CacheRoot != "" {
			cacheRoot = defaults.CacheRoot
		}
	}
	prefetch := defaults.Prefetch

	cache, err := mirror.New(mirror.Config{
		Root:           cacheRoot,
		LockTimeout:    lockTimeout,
		Prefetch:       prefetch,
		PreCloneHook:   preCloneHook,
		Quiet:          !cli.Verbose,
		Verbose:        cli.Verbose,
		PrintOnFailure: cli.PrintGitErrors,
		Credentials:    creds,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	engine, err := fetch.New(fetch.Config{
		Cache:          cache,
		Quiet:          !cli.Verbose,
		Verbose:        cli.Verbose,
		PrintOnFailure: cli.PrintGitErrors,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	return fastclone.Run(ctx, fastclone.Options{
		URL:              cli.URL,
		Dest:             cli.Dest,
		Branch:           cli.Branch,
		ExtraConfig:      cli.ExtraConfig,
		SparsePaths:      fastclone.SplitSparsePaths(cli.SparsePaths),
		AllowedProtocols: defaults.AllowedProtocols,
		Engine:           engine,
	})
}

func loadDefaults(path string) (*gfconfig.Defaults, error) {
	if path == "" {
		return &gfconfig.Defaults{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read defaults file %q: %w", path, err)
	}
	return gfconfig.Load(data)
}

func newLogger(verbose, color bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if color {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitCodeFor propagates the failing subprocess's exit code when available
// (spec.md §6), falling back to 1 for errors raised before any subprocess
// ran.
func exitCodeFor(err error) int {
	var execErr *execx.Error
	if errors.As(err, &execErr) && execErr.ExitCode != 0 {
		return execErr.ExitCode
	}
	return 1
}
