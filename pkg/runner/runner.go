// Package runner spawns child processes for the self-check, the host probe and
// the bootstrap installers.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/arc-language/uvenv/pkg/logging"
)

// ErrPermission is wrapped when the child could not be started because the
// executable is not runnable.
var ErrPermission = errors.New("permission denied spawning process")

// Cmd describes one child process.
type Cmd struct {
	Argv []string

	// ShowOutput streams output lines to the logger while the child runs.
	ShowOutput bool

	// Filter picks the level of each streamed line. Nil logs at info.
	Filter func(line string) logging.Level

	ExtraEnv  map[string]string
	RemoveEnv []string
	Dir       string
}

// Result is the decoded output of a finished child.
type Result struct {
	Stdout string
	Stderr string
}

// ExitError reports a child that ran but exited non-zero.
type ExitError struct {
	Argv   []string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", strings.Join(e.Argv, " "), e.Code)
}

// Runner runs commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// Exec is the os/exec backed Runner.
type Exec struct {
	log logging.Logger
	env []string
}

// New returns a Runner whose children inherit env (usually host.Host.Env)
// rather than the ambient process environment.
func New(log logging.Logger, env []string) *Exec {
	if log == nil {
		log = logging.Nop()
	}
	return &Exec{log: log, env: env}
}

// Run starts cmd, waits for it and returns its output.
func (r *Exec) Run(ctx context.Context, cmd Cmd) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{}, errors.New("runner: empty argv")
	}

	r.log.Debug("Running command %s", strings.Join(cmd.Argv, " "))

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = BuildEnv(r.env, cmd.ExtraEnv, cmd.RemoveEnv)

	var stdout, stderr bytes.Buffer
	var stream *lineWriter
	if cmd.ShowOutput {
		stream = &lineWriter{log: r.log, filter: cmd.Filter}
		c.Stdout = io.MultiWriter(&stdout, stream)
		c.Stderr = io.MultiWriter(&stderr, stream)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	if err := c.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return Result{}, fmt.Errorf("%w: %s: %v", ErrPermission, cmd.Argv[0], err)
		}
		return Result{}, fmt.Errorf("starting %s: %w", cmd.Argv[0], err)
	}

	err := c.Wait()
	if stream != nil {
		stream.Flush()
	}
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &ExitError{
				Argv:   cmd.Argv,
				Code:   exitErr.ExitCode(),
				Output: res.Stdout + res.Stderr,
			}
		}
		return res, fmt.Errorf("waiting for %s: %w", cmd.Argv[0], err)
	}
	return res, nil
}

// BuildEnv applies extra and removed variables to base. The result is
// sorted so children see a stable environment.
func BuildEnv(base []string, extra map[string]string, remove []string) []string {
	vars := make(map[string]string, len(base)+len(extra))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		vars[k] = v
	}
	for _, k := range remove {
		delete(vars, k)
	}
	for k, v := range extra {
		vars[k] = v
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

type lineWriter struct {
	mu     sync.Mutex
	log    logging.Logger
	filter func(string) logging.Level
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line; keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	sc := bufio.NewScanner(&w.buf)
	for sc.Scan() {
		w.emit(sc.Text())
	}
	w.buf.Reset()
}

func (w *lineWriter) emit(line string) {
	level := logging.InfoLevel
	if w.filter != nil {
		level = w.filter(line)
	}
	w.log.Log(level, "%s", line)
	if level < logging.NotifyLevel {
		w.log.ShowProgress()
	}
}
