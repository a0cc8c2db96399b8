// pkg/platform/windows.go
package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/modules"
)

// Windows is native CPython on Windows. Everything is copied; the
// interpreter does not follow links when locating its prefix.
type Windows struct {
	host      host.Host
	shortPath func(string) (string, error)
}

// NewWindows creates the Windows strategy.
func NewWindows(h host.Host) *Windows {
	return &Windows{host: h, shortPath: shortPathName}
}

func (w *Windows) Name() string             { return "win32" }
func (w *Windows) Variant() modules.Variant { return modules.Windows }

// Layout swaps a home containing spaces for its short form, which needs
// the directory to exist first.
func (w *Windows) Layout(home string) (Layout, error) {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return Layout{}, fmt.Errorf("creating %s: %w", home, err)
	}
	if strings.Contains(home, " ") {
		short, err := w.shortPath(home)
		if err != nil {
			return Layout{}, fmt.Errorf("%w: the path %q has a space in it and its short form could not be read: %v",
				ErrShortPath, home, err)
		}
		home = short
	}

	return Layout{
		Home:       home,
		Lib:        filepath.Join(home, "Lib"),
		Include:    filepath.Join(home, "Include"),
		Bin:        filepath.Join(home, "Scripts"),
		StdInclude: filepath.Join(w.host.EffectivePrefix(), "include"),
		ExecSource: filepath.Join(w.host.ExecPrefix, "lib"),
	}, nil
}

func (w *Windows) StdlibDirs() []string {
	return []string{
		w.host.OSModuleDir,
		filepath.Join(filepath.Dir(w.host.OSModuleDir), "DLLs"),
	}
}

func (w *Windows) Executable(l Layout) string {
	return filepath.Join(l.Bin, filepath.Base(w.host.Executable))
}

func (w *Windows) PlatformSpecific(context.Context, Build) error {
	return nil
}

// CopyAuxiliary copies pythonw.exe and the interpreter DLLs. Debug builds
// that no longer exist on the host are removed from the environment.
func (w *Windows) CopyAuxiliary(_ context.Context, b Build, pyExecutable string) error {
	srcDir := filepath.Dir(w.host.Executable)
	dstDir := filepath.Dir(pyExecutable)
	dll := fmt.Sprintf("python%d%d", w.host.Major, w.host.Minor)

	extras := []struct {
		name      string
		dropStale bool
	}{
		{"pythonw.exe", false},
		{"python_d.exe", true},
		{dll + ".dll", false},
		{dll + "_d.dll", true},
	}
	for _, e := range extras {
		src, dst := filepath.Join(srcDir, e.name), filepath.Join(dstDir, e.name)
		if exists(src) {
			b.Log.Info("Also created %s", e.name)
			if err := b.FS.Place(src, dst, false); err != nil {
				return err
			}
			continue
		}
		if e.dropStale && exists(dst) {
			b.Log.Info("Removed %s as the source does not exist", dst)
			if err := b.FS.Remove(dst); err != nil {
				return err
			}
		}
	}
	return nil
}
