package venv

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/uvenv/pkg/fsops"
	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/modules"
	"github.com/arc-language/uvenv/pkg/platform"
	"github.com/arc-language/uvenv/pkg/runner"
)

//go:embed templates/site.py
var sitePy string

// prefixProbe prints sys.prefix without a trailing newline. It stays on one
// line because cmd.exe cannot cope with line breaks in arguments.
const prefixProbe = `import sys;out=sys.stdout;getattr(out, "buffer", out).write(sys.prefix.encode("utf-8"))`

// InstallPython lays down the interpreter and the modules it needs to start,
// then runs the new interpreter to check that it finds its own prefix. It
// returns the path of the environment's interpreter.
func (b *Builder) InstallPython(ctx context.Context) (string, error) {
	l, err := b.Layout()
	if err != nil {
		return "", err
	}
	if within(l.Bin, b.host.Executable) {
		b.log.Fatal("Please use the *system* python to run this")
		return "", fmt.Errorf("%w: %s", ErrHostInsideEnv, b.host.Executable)
	}

	if err := b.fs.Mkdir(l.Lib); err != nil {
		return "", err
	}
	if err := b.fixLib64(l); err != nil {
		return "", err
	}
	if err := b.copyBaseModules(l); err != nil {
		return "", err
	}
	b.advance(StageBaseModulesCopied)

	if err := b.writeSitePackages(l); err != nil {
		return "", err
	}
	b.advance(StageSitePackagesWritten)

	if err := b.copyStdInclude(l); err != nil {
		return "", err
	}
	b.advance(StageIncludeCopied)

	if err := b.reconcileExecPrefix(l); err != nil {
		return "", err
	}
	b.advance(StageExecPrefixReconciled)

	build := platform.Build{Layout: l, FS: b.fs, Host: b.host, Runner: b.runner, Log: b.log}
	if err := b.strategy.PlatformSpecific(ctx, build); err != nil {
		return "", err
	}
	b.advance(StagePlatformFixedUp)

	py, err := b.placeBinaries(ctx, build)
	if err != nil {
		return "", err
	}
	b.advance(StageBinariesPlaced)

	if err := b.verify(ctx, py); err != nil {
		return "", err
	}
	b.advance(StageExecutableVerified)

	if err := b.placeSecondaryAlias(py); err != nil {
		return "", err
	}
	b.advance(StageSecondaryAliasPlaced)

	if cfg := filepath.Join(b.host.UserHome, ".pydistutils.cfg"); b.host.UserHome != "" && b.fs.Exists(cfg) {
		b.log.Notify("Please make sure you remove any previous custom paths from your %s file.", cfg)
	}
	if err := b.fixLocalScheme(l); err != nil {
		return "", err
	}
	return py, nil
}

// fixLib64 links lib64 to lib on hosts whose build config mentions lib64.
func (b *Builder) fixLib64(l platform.Layout) error {
	if !b.host.UsesLib64 {
		return nil
	}
	parent := filepath.Dir(l.Lib)
	if filepath.Base(l.Lib) != "python"+b.host.VersionTag() || filepath.Base(parent) != "lib" {
		b.log.Debug("Host uses lib64 but %s is not a lib/pythonX.Y dir; not linking lib64", l.Lib)
		return nil
	}
	b.log.Debug("This system uses lib64; symlinking lib64 to lib")
	return b.fs.Place(parent, filepath.Join(filepath.Dir(parent), "lib64"), true)
}

func (b *Builder) copyBaseModules(l platform.Layout) error {
	if b.fs.CopyOnly() {
		b.log.Info("Copying Python bootstrap modules")
	} else {
		b.log.Info("Symlinking Python bootstrap modules")
	}
	b.log.Indent()
	defer b.log.Dedent()

	required := modules.RequiredFiles(b.host.Major, b.host.Minor)
	pairs, err := modules.ListRequiredLibFiles(b.strategy.StdlibDirs(), l.Lib, required)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := b.fs.Place(p.Source, p.Dest, true); err != nil {
			return err
		}
	}

	for _, name := range modules.Required(b.host.Major, b.host.Minor, b.strategy.Variant()) {
		if b.host.IsBuiltin(name) {
			b.log.Info("Ignoring built-in bootstrap module: %s", name)
			continue
		}
		src, ok := b.host.ModuleFiles[name]
		if !ok {
			b.log.Info("Cannot import bootstrap module: %s", name)
			continue
		}
		dst, err := b.host.ChangePrefix(src, l.Home)
		if err != nil {
			return fmt.Errorf("placing module %s: %w", name, err)
		}
		if err := b.fs.Place(src, dst, true); err != nil {
			return err
		}
		if strings.HasSuffix(src, ".pyc") {
			if source := strings.TrimSuffix(src, "c"); b.fs.Exists(source) {
				if err := b.fs.Place(source, strings.TrimSuffix(dst, "c"), true); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// sitePackages is where the marker files go.
func sitePackages(l platform.Layout) string {
	return filepath.Join(l.Lib, "site-packages")
}

func (b *Builder) writeSitePackages(l platform.Layout) error {
	dir := sitePackages(l)
	if err := b.fs.Mkdir(dir); err != nil {
		return err
	}

	siteFile := filepath.Join(l.Lib, "site.py")
	if b.host.SiteFile != "" {
		if p, err := b.host.ChangePrefix(b.host.SiteFile, l.Home); err == nil {
			siteFile = p
		} else {
			b.log.Debug("Cannot map %s into the environment: %v", b.host.SiteFile, err)
		}
	}
	rel, err := filepath.Rel(l.Home, dir)
	if err != nil {
		return fmt.Errorf("locating site-packages: %w", err)
	}
	if err := b.fs.Write(siteFile, strings.ReplaceAll(sitePy, "__SITE_PACKAGES__", filepath.ToSlash(rel)), true); err != nil {
		return err
	}

	if b.host.RealPrefix != "" {
		b.log.Notify("Using real prefix %q", b.host.RealPrefix)
	}
	if err := b.fs.Write(filepath.Join(dir, "orig-prefix.txt"), b.host.EffectivePrefix(), true); err != nil {
		return err
	}

	marker := filepath.Join(dir, "no-global-site-packages.txt")
	if !b.opts.SystemSitePackages {
		return b.fs.Write(marker, "", true)
	}
	if b.fs.Exists(marker) {
		b.log.Info("Deleting %s", marker)
		return b.fs.Remove(marker)
	}
	return nil
}

func (b *Builder) copyStdInclude(l platform.Layout) error {
	if l.StdInclude == "" || !b.fs.Exists(l.StdInclude) {
		b.log.Debug("No include dir %s", l.StdInclude)
		return nil
	}
	return b.fs.Place(l.StdInclude, l.Include, true)
}

// reconcileExecPrefix merges the exec-prefix library dir into Lib when the
// host splits its installation.
func (b *Builder) reconcileExecPrefix(l platform.Layout) error {
	if l.IgnoreExecPrefix || filepath.Clean(b.host.ExecPrefix) == filepath.Clean(b.host.EffectivePrefix()) {
		return nil
	}
	entries, err := os.ReadDir(l.ExecSource)
	if err != nil {
		return fmt.Errorf("reading exec prefix %s: %w", l.ExecSource, err)
	}
	for _, e := range entries {
		if err := b.fs.Place(filepath.Join(l.ExecSource, e.Name()), filepath.Join(l.Lib, e.Name()), true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) placeBinaries(ctx context.Context, build platform.Build) (string, error) {
	l := build.Layout
	if err := b.fs.Mkdir(l.Bin); err != nil {
		return "", err
	}
	py := b.strategy.Executable(l)
	b.log.Notify("New %s executable in %s", expectedExe(b.host), py)

	// A Windows interpreter run from its build tree loads .pyd files from
	// there.
	pcbuild := filepath.Dir(b.host.Executable)
	pth := filepath.Join(sitePackages(l), "virtualenv_builddir_pyd.pth")
	if b.host.IsWindows() && b.fs.Exists(filepath.Join(pcbuild, "build.bat")) {
		b.log.Notify("Detected python running from build directory %s", pcbuild)
		b.log.Notify("Writing .pth file linking to build directory for *.pyd files")
		if err := b.fs.Write(pth, pcbuild, true); err != nil {
			return "", err
		}
	} else if b.fs.Exists(pth) {
		b.log.Info("Deleting %s (not Windows env or not build directory python)", pth)
		if err := b.fs.Remove(pth); err != nil {
			return "", err
		}
	}

	if b.host.Executable == py {
		return py, nil
	}

	exe := b.host.Executable
	if b.host.Platform == "cygwin" && b.fs.Exists(exe+".exe") {
		// cygwin sometimes reports the executable without its suffix
		exe += ".exe"
		py += ".exe"
		b.log.Info("Executable actually exists in %s", exe)
	}

	// The interpreter finds its prefix from its own location, so it must
	// be a real file rather than a link back into the host.
	if err := b.fs.Place(exe, py, false); err != nil {
		return "", err
	}
	if err := b.fs.MakeExecutable(py); err != nil {
		return "", err
	}
	if err := b.strategy.CopyAuxiliary(ctx, build, py); err != nil {
		return "", err
	}
	return py, nil
}

// verify runs the new interpreter and compares the prefix it reports with
// the environment root.
func (b *Builder) verify(ctx context.Context, py string) error {
	argv := []string{py, "-c", prefixProbe}
	b.log.Info("Testing executable with %s %s %q", argv[0], argv[1], argv[2])

	res, err := b.runner.Run(ctx, runner.Cmd{Argv: argv, RemoveEnv: []string{"PYTHONHOME"}})
	if errors.Is(err, runner.ErrPermission) {
		b.log.Fatal("ERROR: The executable %s could not be run: %v", py, err)
		return fmt.Errorf("executable %s could not be run: %w", py, err)
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		b.log.Fatal("ERROR: The executable %s is not functioning", py)
		if out := strings.TrimSpace(exitErr.Output); out != "" {
			b.log.Fatal("%s", out)
		}
		return fmt.Errorf("%w: %s exited with status %d: %w", ErrSelfCheck, py, exitErr.Code, err)
	}
	if err != nil {
		return fmt.Errorf("testing executable %s: %w", py, err)
	}

	got := b.normalize(strings.TrimSpace(res.Stdout))
	want := b.normalize(b.layoutHome())
	if got != want {
		b.log.Fatal("ERROR: The executable %s is not functioning", py)
		b.log.Fatal("ERROR: It thinks sys.prefix is %q (should be %q)", got, want)
		b.log.Fatal("ERROR: virtualenv is not compatible with this system or executable")
		if b.host.IsWindows() {
			b.log.Fatal("Note: some Windows users have reported this error when they " +
				"installed Python for \"Only this user\" or have multiple " +
				"versions of Python installed. Copying the appropriate " +
				"PythonXX.dll to the virtualenv Scripts/ directory may fix " +
				"this problem.")
		}
		return fmt.Errorf("%w: %s reports prefix %q, want %q", ErrSelfCheck, py, got, want)
	}
	b.log.Info("Got sys.prefix result: %q", got)
	return nil
}

func (b *Builder) layoutHome() string {
	if b.ready {
		return b.layout.Home
	}
	return b.home
}

// normalize makes an absolute path comparable, folding case and separators
// on Windows hosts.
func (b *Builder) normalize(p string) string {
	if b.host.IsWindows() {
		return strings.ToLower(strings.TrimRight(strings.ReplaceAll(p, "/", `\`), `\`))
	}
	return b.fs.Resolver().Abs(p)
}

// placeSecondaryAlias adds python, pypy or jython next to an interpreter
// installed under another name.
func (b *Builder) placeSecondaryAlias(py string) error {
	name := expectedExe(b.host)
	ext := filepath.Ext(py)
	if strings.TrimSuffix(filepath.Base(py), ext) == name {
		return nil
	}

	alias := filepath.Join(filepath.Dir(py), name)
	if ext == ".exe" {
		alias += ext
	}
	if b.fs.Exists(alias) || fsops.IsLink(alias) {
		b.log.Warn("Not overwriting existing %s script %s (you must use %s)", name, alias, py)
		return nil
	}
	b.log.Notify("Also creating executable in %s", alias)
	if err := b.fs.Place(b.host.Executable, alias, false); err != nil {
		return err
	}
	return b.fs.MakeExecutable(alias)
}

// fixLocalScheme mirrors the root under local/ for hosts whose default
// install scheme is posix_local.
func (b *Builder) fixLocalScheme(l platform.Layout) error {
	if b.host.DefaultScheme != "posix_local" {
		return nil
	}
	local := filepath.Join(l.Home, "local")
	if b.fs.Exists(local) {
		return nil
	}
	if err := b.fs.Mkdir(local); err != nil {
		return err
	}
	entries, err := os.ReadDir(l.Home)
	if err != nil {
		return fmt.Errorf("reading %s: %w", l.Home, err)
	}
	for _, e := range entries {
		if e.Name() == "local" {
			continue
		}
		if err := b.fs.Place(filepath.Join(l.Home, e.Name()), filepath.Join(local, e.Name()), true); err != nil {
			return err
		}
	}
	return nil
}

// expectedExe is the plain interpreter name for the host implementation.
func expectedExe(h host.Host) string {
	switch {
	case h.IsJython():
		return "jython"
	case h.Implementation == host.PyPy:
		return "pypy"
	default:
		return "python"
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
