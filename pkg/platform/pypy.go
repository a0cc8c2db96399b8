// pkg/platform/pypy.go
package platform

import (
	"context"
	"path/filepath"

	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/modules"
)

// pypyWindowsLibs sit beside pypy.exe on Windows.
var pypyWindowsLibs = []string{
	"libexpat.dll", "libpypy.dll", "libpypy-c.dll",
	"libeay32.dll", "ssleay32.dll", "sqlite.dll",
}

// PyPy keeps its library directly under the environment root.
type PyPy struct {
	host host.Host
}

// NewPyPy creates the PyPy strategy.
func NewPyPy(h host.Host) *PyPy {
	return &PyPy{host: h}
}

func (p *PyPy) Name() string             { return "pypy" }
func (p *PyPy) Variant() modules.Variant { return modules.PyPy }

func (p *PyPy) Layout(home string) (Layout, error) {
	return Layout{
		Home:             home,
		Lib:              home,
		Include:          filepath.Join(home, "include"),
		Bin:              filepath.Join(home, "bin"),
		StdInclude:       filepath.Join(p.host.EffectivePrefix(), "include"),
		IgnoreExecPrefix: true,
	}, nil
}

func (p *PyPy) StdlibDirs() []string {
	return []string{p.host.OSModuleDir}
}

func (p *PyPy) Executable(l Layout) string {
	return filepath.Join(l.Bin, filepath.Base(p.host.Executable))
}

func (p *PyPy) PlatformSpecific(context.Context, Build) error {
	return nil
}

// CopyAuxiliary adds a python alias for the pypy binary.
func (p *PyPy) CopyAuxiliary(_ context.Context, b Build, pyExecutable string) error {
	alias := filepath.Join(filepath.Dir(pyExecutable), "python")
	if p.host.Platform == "win32" || p.host.Platform == "cygwin" {
		alias += ".exe"
	}
	if alias != pyExecutable {
		b.Log.Info("Also created executable %s", alias)
		if err := b.FS.Place(pyExecutable, alias, true); err != nil {
			return err
		}
	}

	if p.host.Platform != "win32" {
		return nil
	}
	prefix := p.host.EffectivePrefix()
	for _, name := range pypyWindowsLibs {
		src := filepath.Join(prefix, name)
		if !exists(src) {
			continue
		}
		if err := b.FS.Place(src, filepath.Join(b.Layout.Bin, name), true); err != nil {
			return err
		}
	}
	return nil
}
