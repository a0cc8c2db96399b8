// pkg/platform/jython.go
package platform

import (
	"context"
	"path/filepath"

	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/modules"
)

// Jython runs on the JVM and has no exec prefix of its own.
type Jython struct {
	host host.Host
}

// NewJython creates the Jython strategy.
func NewJython(h host.Host) *Jython {
	return &Jython{host: h}
}

func (j *Jython) Name() string             { return "jython" }
func (j *Jython) Variant() modules.Variant { return modules.Jython }

// Layout keeps the stdlib under <home>/Lib, which is where Jython looks for
// it relative to its prefix. Unlike PyPy the lib dir is not the environment
// root itself: a Jython started from <home>/bin only finds its modules under
// <home>/Lib.
func (j *Jython) Layout(home string) (Layout, error) {
	return Layout{
		Home:             home,
		Lib:              filepath.Join(home, "Lib"),
		Include:          filepath.Join(home, "Include"),
		Bin:              filepath.Join(home, "bin"),
		ExecSource:       filepath.Join(j.host.ExecPrefix, "Lib"),
		IgnoreExecPrefix: true,
	}, nil
}

func (j *Jython) StdlibDirs() []string {
	return []string{j.host.OSModuleDir}
}

func (j *Jython) Executable(l Layout) string {
	return filepath.Join(l.Bin, filepath.Base(j.host.Executable))
}

// PlatformSpecific brings the runtime jars along. The registry file and the
// package cache are copied because Jython writes next to them.
func (j *Jython) PlatformSpecific(_ context.Context, b Build) error {
	prefix := j.host.EffectivePrefix()
	home := b.Layout.Home

	// either jython-dev.jar plus javalib/, or a standalone jython.jar
	for _, name := range []string{"jython-dev.jar", "javalib", "jython.jar"} {
		src := filepath.Join(prefix, name)
		if !exists(src) {
			continue
		}
		if err := b.FS.Place(src, filepath.Join(home, name), true); err != nil {
			return err
		}
	}

	for _, name := range []string{"registry", "cachedir"} {
		if err := b.FS.Place(filepath.Join(prefix, name), filepath.Join(home, name), false); err != nil {
			return err
		}
	}
	return nil
}

func (j *Jython) CopyAuxiliary(context.Context, Build, string) error {
	return nil
}
