// pkg/platform/darwin.go
package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/runner"
)

var frameworkExe = regexp.MustCompile(`^Python(?:-32|-64)*$`)

// Darwin is POSIX plus the fixups framework builds need.
type Darwin struct {
	*Posix

	// haveTool is swapped in tests.
	haveTool func(string) bool
}

// NewDarwin creates the macOS strategy.
func NewDarwin(h host.Host) *Darwin {
	return &Darwin{Posix: NewPosix(h), haveTool: commandExists}
}

func (d *Darwin) Name() string { return "darwin" }

func (d *Darwin) StdlibDirs() []string {
	dirs := d.Posix.StdlibDirs()
	return append(dirs, filepath.Join(dirs[0], "site-packages"))
}

// Executable renames the framework's Python, Python-32 and Python-64
// binaries to plain python.
func (d *Darwin) Executable(l Layout) string {
	exe := d.Posix.Executable(l)
	if strings.Contains(d.host.EffectivePrefix(), "Python.framework") && frameworkExe.MatchString(filepath.Base(exe)) {
		return filepath.Join(filepath.Dir(exe), "python")
	}
	return exe
}

// PlatformSpecific copies the real interpreter out of a framework bundle,
// brings the framework dylib along as .Python and points the binary at it.
func (d *Darwin) PlatformSpecific(ctx context.Context, b Build) error {
	prefix := d.host.EffectivePrefix()
	if !strings.Contains(prefix, ".framework") {
		return nil
	}

	var original string
	if strings.Contains(prefix, "Python.framework") {
		b.Log.Debug("MacOSX Python framework detected")
		// sys.executable may be the stub in ${prefix}/bin
		original = filepath.Join(prefix, "Resources", "Python.app", "Contents", "MacOS", "Python")
	}
	if strings.Contains(prefix, "EPD") {
		b.Log.Debug("EPD framework detected")
		original = filepath.Join(prefix, "bin", "python")
	}

	exe := d.Executable(b.Layout)
	if original != "" {
		// install_name_tool rewrites the binary, so it must be a copy.
		if err := b.FS.Place(original, exe, false); err != nil {
			return err
		}
	}

	dylib := filepath.Join(b.Layout.Home, ".Python")
	if err := b.FS.Remove(dylib); err != nil {
		return err
	}
	if err := b.FS.Place(filepath.Join(prefix, "Python"), dylib, false); err != nil {
		return err
	}

	if !d.haveTool("install_name_tool") {
		return fmt.Errorf("install_name_tool not found; you must have Apple's development tools installed")
	}
	_, err := b.Runner.Run(ctx, runner.Cmd{
		Argv: []string{
			"install_name_tool", "-change",
			filepath.Join(prefix, "Python"),
			"@executable_path/../.Python",
			exe,
		},
	})
	if err != nil {
		b.Log.Fatal("Could not call install_name_tool -- you must have Apple's development tools installed")
		return fmt.Errorf("rewriting dylib reference in %s: %w", exe, err)
	}

	// Some tools expect pythonX.Y next to python.
	version := d.host.VersionTag()
	alias, target := exe+version, "python"
	if strings.HasSuffix(exe, version) {
		alias, target = filepath.Join(b.Layout.Bin, "python"), filepath.Base(exe)
	}
	if err := b.FS.Remove(alias); err != nil {
		return err
	}
	return b.FS.Symlink(target, alias)
}
