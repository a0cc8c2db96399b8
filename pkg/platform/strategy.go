// pkg/platform/strategy.go
package platform

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arc-language/uvenv/pkg/fsops"
	"github.com/arc-language/uvenv/pkg/host"
	"github.com/arc-language/uvenv/pkg/logging"
	"github.com/arc-language/uvenv/pkg/modules"
	"github.com/arc-language/uvenv/pkg/runner"
)

// ErrShortPath is returned when a Windows target path contains spaces and
// the host cannot provide its 8.3 form.
var ErrShortPath = errors.New("short path name unavailable")

// Layout is where an environment keeps its pieces. It is computed once per
// build and not modified afterwards.
type Layout struct {
	Home    string
	Lib     string
	Include string
	Bin     string

	// StdInclude is the host header dir copied into Include, if any.
	StdInclude string

	// ExecSource is the host exec-prefix library dir merged into Lib when
	// exec_prefix differs from prefix.
	ExecSource       string
	IgnoreExecPrefix bool
}

// Validate checks that Lib, Include and Bin are set and live under Home.
func (l Layout) Validate() error {
	if l.Home == "" {
		return fmt.Errorf("layout: empty home")
	}
	for name, p := range map[string]string{"lib": l.Lib, "include": l.Include, "bin": l.Bin} {
		if p == "" {
			return fmt.Errorf("layout: empty %s dir", name)
		}
		if !within(l.Home, p) {
			return fmt.Errorf("layout: %s dir %s is outside %s", name, p, l.Home)
		}
	}
	if l.ExecSource == "" && !l.IgnoreExecPrefix {
		return fmt.Errorf("layout: empty exec source")
	}
	return nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Build is what a strategy needs to touch the environment.
type Build struct {
	Layout Layout
	FS     *fsops.Materializer
	Host   host.Host
	Runner runner.Runner
	Log    logging.Logger
}

// Strategy captures everything that differs between host platforms.
type Strategy interface {
	Name() string
	Variant() modules.Variant

	// Layout computes the environment dirs for home.
	Layout(home string) (Layout, error)

	// StdlibDirs lists host dirs scanned for required support files.
	StdlibDirs() []string

	// Executable is where the interpreter binary goes.
	Executable(l Layout) string

	// PlatformSpecific runs after the library tree is in place and before
	// binaries are placed.
	PlatformSpecific(ctx context.Context, b Build) error

	// CopyAuxiliary places extra binaries next to the interpreter.
	CopyAuxiliary(ctx context.Context, b Build, pyExecutable string) error
}
