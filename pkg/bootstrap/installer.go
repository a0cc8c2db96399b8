// Package bootstrap installs the packaging tools into a new environment:
// the distutils shim, setuptools or distribute, and pip.
package bootstrap

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/uvenv/pkg/fsops"
	"github.com/arc-language/uvenv/pkg/logging"
	"github.com/arc-language/uvenv/pkg/registry"
	"github.com/arc-language/uvenv/pkg/runner"
)

var (
	//go:embed templates/distutils_init.py
	distutilsInit string

	//go:embed templates/distutils.cfg
	distutilsCfg string
)

// ErrArchiveNotFound is returned when a pinned archive is missing from every
// search dir and downloading is disabled.
var ErrArchiveNotFound = errors.New("bootstrap archive not found")

// Config wires an Installer.
type Config struct {
	SearchDirs      []string
	NeverDownload   bool
	UnzipSetuptools bool

	// DownloadDir receives fetched archives.
	DownloadDir string

	// Cwd anchors relative search and download dirs.
	Cwd string

	Index   *registry.Index
	Fetcher Fetcher
	Runner  runner.Runner
	Log     logging.Logger
}

// Installer installs pinned bootstrap packages with the environment's own
// interpreter.
type Installer struct {
	cfg Config
}

// New creates an Installer.
func New(cfg Config) *Installer {
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewClient()
	}
	if cfg.Cwd != "" {
		r := fsops.NewResolver(cfg.Cwd)
		dirs := make([]string, len(cfg.SearchDirs))
		for i, dir := range cfg.SearchDirs {
			dirs[i] = r.Abs(dir)
		}
		cfg.SearchDirs = dirs
		if cfg.DownloadDir != "" {
			cfg.DownloadDir = r.Abs(cfg.DownloadDir)
		}
	}
	return &Installer{cfg: cfg}
}

// InstallDistutils writes the distutils shim into dir. A customised
// distutils.cfg is kept.
func (i *Installer) InstallDistutils(fs *fsops.Materializer, dir string) error {
	if err := fs.Mkdir(dir); err != nil {
		return err
	}
	if err := fs.Write(filepath.Join(dir, "__init__.py"), distutilsInit, true); err != nil {
		return err
	}
	return fs.Write(filepath.Join(dir, "distutils.cfg"), distutilsCfg, false)
}

// FindArchive locates the archive for a pinned package, downloading it when
// allowed.
func (i *Installer) FindArchive(ctx context.Context, name string) (string, error) {
	entry, err := i.cfg.Index.Lookup(name)
	if err != nil {
		return "", err
	}

	if archive, ok := findArchive(i.cfg.SearchDirs, entry.Archive); ok {
		i.cfg.Log.Debug("Found %s archive %s", name, archive)
		return archive, nil
	}

	if i.cfg.NeverDownload {
		return "", fmt.Errorf("%w: no file matching %q for %s in %s; "+
			"put the archive in one of these dirs or allow downloads",
			ErrArchiveNotFound, entry.Archive, name, strings.Join(i.cfg.SearchDirs, ", "))
	}
	if entry.URL == "" {
		return "", fmt.Errorf("%w: %s has no download url", ErrArchiveNotFound, name)
	}

	dir := i.cfg.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if entry.SHA256 == "" {
		i.cfg.Log.Info("No checksum pinned for %s; skipping verification", name)
	}
	i.cfg.Log.Notify("Downloading %s %s from %s", name, entry.Version, entry.URL)
	return fetchTo(ctx, i.cfg.Fetcher, entry.URL, dir, entry.SHA256)
}

// Install installs a pinned package using py.
func (i *Installer) Install(ctx context.Context, py, name string) (err error) {
	archive, err := i.FindArchive(ctx, name)
	if err != nil {
		return err
	}

	log := i.cfg.Log
	log.StartProgress(fmt.Sprintf("Installing %s...", name))
	defer func() {
		if err != nil {
			log.EndProgress("...failed")
		} else {
			log.EndProgress(fmt.Sprintf("...Installing %s done.", name))
		}
	}()

	cmd := runner.Cmd{
		ShowOutput: true,
		Filter:     outputFilter(name),
		RemoveEnv:  []string{"PYTHONPATH", "PYTHONHOME", "__PYVENV_LAUNCHER__", "PYTHONDONTWRITEBYTECODE"},
	}

	if isPrebuilt(archive) {
		log.Debug("Installing prebuilt %s", filepath.Base(archive))
	}

	switch ext := strings.ToLower(filepath.Ext(archive)); {
	case ext == ".egg":
		cmd.Argv = []string{py, "-m", "easy_install"}
		if i.cfg.UnzipSetuptools {
			cmd.Argv = append(cmd.Argv, "--always-unzip")
		}
		cmd.Argv = append(cmd.Argv, archive)
	case ext == ".whl":
		// a pip wheel can run itself from the zip
		cmd.Argv = []string{py, filepath.Join(archive, "pip"), "install", "--no-index", archive}
	default:
		tmp, err := os.MkdirTemp("", "uvenv-"+name+"-")
		if err != nil {
			return fmt.Errorf("creating staging dir: %w", err)
		}
		defer os.RemoveAll(tmp)

		project, err := Stage(archive, tmp)
		if err != nil {
			return fmt.Errorf("staging %s: %w", filepath.Base(archive), err)
		}
		if i.cfg.UnzipSetuptools {
			log.Debug("--unzip-setuptools has no effect on source archives")
		}
		cmd.Argv = []string{py, "setup.py", "install"}
		cmd.Dir = project
	}

	if _, err := i.cfg.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("installing %s: %w", name, err)
	}
	return nil
}

var quietPrefixes = []string{
	"Reading ", "Best match", "Processing ", "Copying ", "Adding ",
	"Installing ", "Installed ", "Extracting", "Now working", "Before",
	"Scanning", "Setuptools", "Egg", "Already", "running", "writing",
	"reading", "installing", "creating", "copying", "byte-compiling",
	"removing",
}

// outputFilter demotes installer chatter to debug.
func outputFilter(name string) func(string) logging.Level {
	return func(line string) logging.Level {
		if strings.TrimSpace(line) == "" {
			return logging.DebugLevel
		}
		for _, p := range quietPrefixes {
			if strings.HasPrefix(line, p) {
				return logging.DebugLevel
			}
		}
		if name == "distribute" {
			return logging.DebugLevel
		}
		return logging.InfoLevel
	}
}
