// Package host describes the interpreter an environment is cloned from.
//
// A Host is a snapshot taken once, by Probe or by hand in tests, and then
// passed by value to every component. Nothing downstream reads the process
// working directory or environment directly.
package host

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/arc-language/uvenv/pkg/modules"
)

// Implementations reported by the probe.
const (
	CPython = "cpython"
	PyPy    = "pypy"
	Jython  = "jython"
)

// Host is an immutable description of the host interpreter.
type Host struct {
	Executable string `json:"executable"`
	Prefix     string `json:"prefix"`
	RealPrefix string `json:"real_prefix"`
	ExecPrefix string `json:"exec_prefix"`

	Major int `json:"major"`
	Minor int `json:"minor"`
	Micro int `json:"micro"`

	ABIFlags       string `json:"abiflags"`
	Implementation string `json:"implementation"`

	// Platform is sys.platform, e.g. linux2, darwin, win32, cygwin, java1.7.
	Platform string `json:"platform"`

	BuiltinModules []string `json:"builtin_modules"`

	// ModuleFiles maps module names to the file or package dir they load
	// from. Modules the host cannot find are absent.
	ModuleFiles map[string]string `json:"module_files"`

	OSModuleDir  string `json:"os_module_dir"`
	SiteFile     string `json:"site_file"`
	DistutilsDir string `json:"distutils_dir"`

	UsesLib64     bool   `json:"uses_lib64"`
	DefaultScheme string `json:"default_scheme"`

	// ChangePrefixes are the host dirs that map onto the environment root
	// when a module path is rewritten.
	ChangePrefixes []string `json:"change_prefixes"`

	UserHome string `json:"user_home"`

	Cwd string   `json:"-"`
	Env []string `json:"-"`
}

// EffectivePrefix returns the prefix of the real installation, looking
// through an enclosing environment when there is one.
func (h Host) EffectivePrefix() string {
	if h.RealPrefix != "" {
		return h.RealPrefix
	}
	return h.Prefix
}

// VersionTag returns "X.Y".
func (h Host) VersionTag() string {
	return fmt.Sprintf("%d.%d", h.Major, h.Minor)
}

// Variant maps the host onto a module set variant.
func (h Host) Variant() modules.Variant {
	switch {
	case h.IsJython():
		return modules.Jython
	case h.Implementation == PyPy:
		return modules.PyPy
	case h.IsWindows():
		return modules.Windows
	default:
		return modules.Posix
	}
}

// IsJython reports a JVM hosted interpreter.
func (h Host) IsJython() bool {
	return h.Implementation == Jython || strings.HasPrefix(h.Platform, "java")
}

// IsWindows reports native Windows, not cygwin.
func (h Host) IsWindows() bool {
	return h.Platform == "win32"
}

// IsDarwin reports macOS.
func (h Host) IsDarwin() bool {
	return h.Platform == "darwin"
}

// IsBuiltin reports whether a module is compiled into the interpreter.
func (h Host) IsBuiltin(name string) bool {
	return slices.Contains(h.BuiltinModules, name)
}

// Getenv reads a variable from the captured environment.
func (h Host) Getenv(key string) string {
	prefix := key + "="
	for _, kv := range h.Env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}

// ChangePrefix rewrites a host path to the same place under dst. The longest
// matching host prefix wins.
func (h Host) ChangePrefix(path, dst string) (string, error) {
	prefixes := h.ChangePrefixes
	if len(prefixes) == 0 {
		prefixes = []string{h.Prefix, h.RealPrefix, h.ExecPrefix}
	}

	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			clean = append(clean, filepath.Clean(p))
		}
	}
	slices.SortStableFunc(clean, func(a, b string) int { return len(b) - len(a) })

	path = filepath.Clean(path)
	for _, p := range clean {
		if path == p {
			return dst, nil
		}
		root := p
		if !strings.HasSuffix(root, string(os.PathSeparator)) {
			root += string(os.PathSeparator)
		}
		if rel, ok := strings.CutPrefix(path, root); ok {
			return filepath.Join(dst, rel), nil
		}
	}
	return "", fmt.Errorf("path %s does not start with any of these prefixes: %s", path, strings.Join(clean, ", "))
}
