// Package venv builds an environment: the library tree, the interpreter
// binaries, the bootstrap packages and the activation scripts.
package venv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/uvenv/pkg/activate"
	"github.com/arc-language/uvenv/pkg/config"
	"github.com/arc-language/uvenv/pkg/fsops"
	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/logging"
	"github.com/arc-language/uvenv/pkg/platform"
	"github.com/arc-language/uvenv/pkg/runner"
)

var (
	// ErrSelfCheck is returned when the new interpreter reports a prefix
	// other than the environment root.
	ErrSelfCheck = errors.New("executable self-check failed")

	// ErrHostInsideEnv is returned when the host interpreter lives in the
	// target bin dir.
	ErrHostInsideEnv = errors.New("host interpreter is inside the target environment")
)

// Bootstrapper installs the packaging tools once the interpreter works.
type Bootstrapper interface {
	InstallDistutils(fs *fsops.Materializer, dir string) error
	Install(ctx context.Context, py, name string) error
}

// Config wires a Builder.
type Config struct {
	Home    string
	Options config.Options
	Host    host.Host

	Runner    runner.Runner
	Bootstrap Bootstrapper
	Log       logging.Logger

	// Strategy overrides platform.Select.
	Strategy platform.Strategy
}

// Builder creates one environment. It is not safe for concurrent use, and
// two Builders must not target the same root at once.
type Builder struct {
	home      string
	opts      config.Options
	host      host.Host
	strategy  platform.Strategy
	fs        *fsops.Materializer
	runner    runner.Runner
	bootstrap Bootstrapper
	log       logging.Logger

	layout platform.Layout
	ready  bool
	stage  Stage
}

// New creates a Builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Home == "" {
		return nil, fmt.Errorf("no destination directory given")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("no runner configured")
	}
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	if cfg.Strategy == nil {
		cfg.Strategy = platform.Select(cfg.Host)
	}

	fs := fsops.New(cfg.Log, fsops.Options{
		Base:     cfg.Host.Cwd,
		CopyOnly: cfg.Options.AlwaysCopy || cfg.Host.IsWindows(),
	})

	return &Builder{
		home:      fs.Resolver().Abs(cfg.Home),
		opts:      cfg.Options,
		host:      cfg.Host,
		strategy:  cfg.Strategy,
		fs:        fs,
		runner:    cfg.Runner,
		bootstrap: cfg.Bootstrap,
		log:       cfg.Log,
	}, nil
}

// Stage reports the last completed step.
func (b *Builder) Stage() Stage {
	return b.stage
}

// Strategy returns the platform strategy in use.
func (b *Builder) Strategy() platform.Strategy {
	return b.strategy
}

// Layout computes the environment dirs on first use.
func (b *Builder) Layout() (platform.Layout, error) {
	if b.ready {
		return b.layout, nil
	}
	l, err := b.strategy.Layout(b.home)
	if err != nil {
		return platform.Layout{}, err
	}
	if err := l.Validate(); err != nil {
		return platform.Layout{}, err
	}
	b.layout, b.ready = l, true
	b.advance(StagePathsComputed)
	return l, nil
}

// Create builds the environment. The first failure stops the build and the
// partial tree is left for inspection.
func (b *Builder) Create(ctx context.Context) error {
	l, err := b.Layout()
	if err != nil {
		return err
	}

	if b.host.Getenv("PYTHONHOME") != "" {
		b.log.Warn("PYTHONHOME is set.  You *must* activate the virtualenv before using it")
	}

	if b.opts.Clear {
		if err := b.clear(l); err != nil {
			return err
		}
	}

	py, err := b.InstallPython(ctx)
	if err != nil {
		return err
	}

	if b.bootstrap != nil {
		if err := b.bootstrap.InstallDistutils(b.fs, b.distutilsDir(l)); err != nil {
			return fmt.Errorf("installing distutils: %w", err)
		}
		if err := b.bootstrap.Install(ctx, py, b.backend()); err != nil {
			return err
		}
		if err := b.bootstrap.Install(ctx, py, "pip"); err != nil {
			return err
		}
		b.advance(StageBootstrapped)
	}

	if err := activate.Install(b.fs, activate.Options{
		Home:    l.Home,
		BinDir:  l.Bin,
		Prompt:  b.opts.Prompt,
		Windows: b.host.IsWindows(),
	}); err != nil {
		return fmt.Errorf("installing activation scripts: %w", err)
	}
	b.log.Info("Wrote %s to %s", strings.Join(activate.Scripts(b.host.IsWindows()), ", "), l.Bin)
	b.advance(StageActivated)
	return nil
}

// clear removes the library tree. The bin dir survives even when it sits
// inside the library tree.
func (b *Builder) clear(l platform.Layout) error {
	defer b.advance(StageCleared)
	defer b.log.Notify("Not deleting %s", l.Bin)

	rel, err := filepath.Rel(l.Lib, l.Bin)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return b.fs.RemoveTree(l.Lib)
	}

	keep := strings.SplitN(rel, string(filepath.Separator), 2)[0]
	entries, err := os.ReadDir(l.Lib)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clearing %s: %w", l.Lib, err)
	}
	for _, e := range entries {
		if e.Name() == keep {
			continue
		}
		if err := b.fs.RemoveTree(filepath.Join(l.Lib, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) backend() string {
	if b.opts.Backend == config.Distribute {
		return config.Distribute
	}
	return config.Setuptools
}

func (b *Builder) distutilsDir(l platform.Layout) string {
	if b.host.DistutilsDir != "" {
		if dir, err := b.host.ChangePrefix(b.host.DistutilsDir, l.Home); err == nil {
			return dir
		}
	}
	return filepath.Join(l.Lib, "distutils")
}

func (b *Builder) advance(s Stage) {
	b.stage = s
	b.log.Debug("Reached %s", s)
}
