// pkg/platform/posix.go
package platform

import (
	"context"
	"path/filepath"

	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/modules"
)

// Posix is the layout of a CPython built for Unix-like systems.
type Posix struct {
	host host.Host
}

// NewPosix creates the POSIX strategy.
func NewPosix(h host.Host) *Posix {
	return &Posix{host: h}
}

func (p *Posix) Name() string             { return "posix" }
func (p *Posix) Variant() modules.Variant { return modules.Posix }

func (p *Posix) Layout(home string) (Layout, error) {
	tag := "python" + p.host.VersionTag()
	return Layout{
		Home:       home,
		Lib:        filepath.Join(home, "lib", tag),
		Include:    filepath.Join(home, "include", tag+p.host.ABIFlags),
		Bin:        filepath.Join(home, "bin"),
		StdInclude: filepath.Join(p.host.EffectivePrefix(), "include", tag+p.host.ABIFlags),
		ExecSource: filepath.Join(p.host.ExecPrefix, "lib", tag),
	}, nil
}

func (p *Posix) StdlibDirs() []string {
	return []string{p.host.OSModuleDir}
}

func (p *Posix) Executable(l Layout) string {
	return filepath.Join(l.Bin, filepath.Base(p.host.Executable))
}

func (p *Posix) PlatformSpecific(context.Context, Build) error {
	return nil
}

func (p *Posix) CopyAuxiliary(context.Context, Build, string) error {
	return nil
}
