// Package activate renders the shell scripts that put an environment's
// executables on PATH.
package activate

import (
	"embed"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/arc-language/uvenv/pkg/fsops"
)

//go:embed templates
var templates embed.FS

// Options describes the environment the scripts activate.
type Options struct {
	// Home is the environment root.
	Home string
	// BinDir receives the scripts.
	BinDir string
	// Prompt replaces the default "(name)" prompt prefix when set.
	Prompt  string
	Windows bool
}

// script maps an output file name to its template.
type script struct {
	name     string
	template string
}

var (
	posixScripts = []script{
		{"activate", "activate.sh"},
		{"activate.fish", "activate.fish"},
		{"activate.csh", "activate.csh"},
		{"activate_this.py", "activate_this.py"},
	}
	windowsScripts = []script{
		{"activate", "activate.sh"},
		{"activate.bat", "activate.bat"},
		{"deactivate.bat", "deactivate.bat"},
		{"activate.ps1", "activate.ps1"},
		{"activate.csh", "activate.csh"},
		{"activate_this.py", "activate_this.py"},
	}
)

// Scripts returns the file names Install writes.
func Scripts(windows bool) []string {
	set := posixScripts
	if windows {
		set = windowsScripts
	}
	names := make([]string, 0, len(set))
	for _, s := range set {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}

// Install writes the activation scripts into opts.BinDir, replacing any
// previous copies.
func Install(fs *fsops.Materializer, opts Options) error {
	set := posixScripts
	if opts.Windows {
		set = windowsScripts
	}
	for _, s := range set {
		content, err := Render(s.template, opts)
		if err != nil {
			return err
		}
		if err := fs.Write(filepath.Join(opts.BinDir, s.name), content, true); err != nil {
			return err
		}
	}
	return nil
}

// Render fills in one template. The sh script is parsed before it is
// returned.
func Render(template string, opts Options) (string, error) {
	data, err := templates.ReadFile(path.Join("templates", template))
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", template, err)
	}

	name := baseName(opts.Home)
	winPrompt := opts.Prompt
	if winPrompt == "" {
		winPrompt = "(" + name + ")"
	}

	home := opts.Home
	if opts.Windows && template == "activate.sh" {
		home = shellHome(opts.Home)
	}

	content := strings.NewReplacer(
		"__VIRTUAL_PROMPT__", opts.Prompt,
		"__VIRTUAL_WINPROMPT__", winPrompt,
		"__VIRTUAL_ENV__", home,
		"__VIRTUAL_NAME__", name,
		"__BIN_NAME__", baseName(opts.BinDir),
	).Replace(string(data))

	if template == "activate.sh" {
		if _, err := syntax.NewParser().Parse(strings.NewReader(content), "activate"); err != nil {
			return "", fmt.Errorf("activate script syntax error: %w", err)
		}
	}
	return content, nil
}

// shellHome picks the environment root at run time so the same script works
// under Cygwin and MSYS.
func shellHome(home string) string {
	slashed := strings.ReplaceAll(home, `\`, "/")
	msys := slashed
	if len(slashed) >= 2 && slashed[1] == ':' {
		msys = "/" + slashed[:1] + slashed[2:]
	}
	return fmt.Sprintf(`$(if [ "$OSTYPE" "==" "cygwin" ]; then cygpath -u '%s'; else echo '%s'; fi;)`, home, msys)
}

// baseName handles both separators so Windows roots render on any host.
func baseName(p string) string {
	p = strings.TrimRight(strings.ReplaceAll(p, `\`, "/"), "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
