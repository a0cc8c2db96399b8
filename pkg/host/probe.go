package host

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arc-language/uvenv/pkg/modules"
	"github.com/arc-language/uvenv/pkg/runner"
)

//go:embed probe.py
var probeScript string

// ProbeConfig selects the interpreter to inspect.
type ProbeConfig struct {
	// Python is the interpreter to run, a path or a name on PATH.
	Python string

	Cwd string
	Env []string
}

// Probe runs the host interpreter once and captures what later steps need.
func Probe(ctx context.Context, r runner.Runner, cfg ProbeConfig) (Host, error) {
	python := cfg.Python
	if python == "" {
		python = "python"
	}

	argv := append([]string{python, "-c", probeScript}, modules.Universe()...)
	res, err := r.Run(ctx, runner.Cmd{
		Argv:      argv,
		RemoveEnv: []string{"__PYVENV_LAUNCHER__", "PYTHONSTARTUP"},
		Dir:       cfg.Cwd,
	})
	if err != nil {
		return Host{}, fmt.Errorf("probing interpreter %s: %w", python, err)
	}

	h, err := Parse([]byte(res.Stdout))
	if err != nil {
		return Host{}, fmt.Errorf("probing interpreter %s: %w", python, err)
	}
	h.Cwd = cfg.Cwd
	h.Env = cfg.Env
	return h, nil
}

// Parse decodes probe output.
func Parse(data []byte) (Host, error) {
	var h Host
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &h); err != nil {
		return Host{}, fmt.Errorf("decoding probe output: %w", err)
	}
	if h.Executable == "" || h.Prefix == "" {
		return Host{}, fmt.Errorf("probe output is missing executable or prefix")
	}
	if h.Implementation == "" {
		h.Implementation = CPython
	}
	if h.ModuleFiles == nil {
		h.ModuleFiles = map[string]string{}
	}
	return h, nil
}
