// uvenv.go
package uvenv

import (
	"context"
	"fmt"
	"os"

	"github.com/arc-language/uvenv/pkg/bootstrap"
	"github.com/arc-language/uvenv/pkg/config"
	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/logging"
	"github.com/arc-language/uvenv/pkg/registry"
	"github.com/arc-language/uvenv/pkg/runner"
	"github.com/arc-language/uvenv/pkg/venv"
)

// Re-export types for convenience
type (
	Options = config.Options
	Host    = host.Host
	Logger  = logging.Logger
	Stage   = venv.Stage
)

// DefaultOptions returns a configuration with sensible defaults
func DefaultOptions() *Options {
	return config.DefaultOptions()
}

// Create builds an environment at home from the interpreter named by
// opts.Python. Errors are *Error values carrying the exit status.
func Create(ctx context.Context, home string, opts *Options, log Logger) error {
	if log == nil {
		log = logging.Nop()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return wrap("create", home, fmt.Errorf("reading working directory: %w", err))
	}
	env := os.Environ()
	return create(ctx, home, opts, log, runner.New(log, env), cwd, env)
}

func create(ctx context.Context, home string, opts *Options, log Logger, r runner.Runner, cwd string, env []string) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Normalize(); err != nil {
		return wrap("create", home, err)
	}

	h, err := Probe(ctx, r, opts.Python, cwd, env)
	if err != nil {
		return wrap("create", home, err)
	}
	log.Debug("Host %s %d.%d.%d (%s) at %s", h.Implementation, h.Major, h.Minor, h.Micro, h.Platform, h.Executable)

	idx, err := registry.Load(opts.IndexFile)
	if err != nil {
		return wrap("create", home, err)
	}

	inst := bootstrap.New(bootstrap.Config{
		SearchDirs:      opts.SearchDirs,
		NeverDownload:   opts.NeverDownload,
		UnzipSetuptools: opts.UnzipSetuptools,
		DownloadDir:     opts.CacheDir,
		Cwd:             h.Cwd,
		Index:           idx,
		Fetcher:         bootstrap.NewClientWithTimeout(opts.DownloadTimeout),
		Runner:          r,
		Log:             log,
	})

	b, err := venv.New(venv.Config{
		Home:      home,
		Options:   *opts,
		Host:      h,
		Runner:    r,
		Bootstrap: inst,
		Log:       log,
	})
	if err != nil {
		return wrap("create", home, err)
	}
	log.Debug("Using %s layout", b.Strategy().Name())

	return wrap("create", home, b.Create(ctx))
}

// Probe snapshots the interpreter at python.
func Probe(ctx context.Context, r runner.Runner, python, cwd string, env []string) (Host, error) {
	h, err := host.Probe(ctx, r, host.ProbeConfig{Python: python, Cwd: cwd, Env: env})
	if err != nil {
		return Host{}, err
	}
	if h.Major < 2 || h.Major > 3 {
		return Host{}, fmt.Errorf("%w: %s %d.%d", ErrUnsupportedPlatform, h.Implementation, h.Major, h.Minor)
	}
	return h, nil
}
