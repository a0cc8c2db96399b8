// Package logging provides the leveled logger used while building an
// environment.
//
// Levels follow the classic virtualenv ordering: debug < info < notify <
// warn < fatal. Notify is the default console threshold, so "info" lines are
// only visible with -v and "debug" lines with -vv.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Level is a logging threshold.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NotifyLevel
	WarnLevel
	FatalLevel
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case NotifyLevel:
		return "notify"
	case WarnLevel:
		return "warn"
	case FatalLevel:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// LevelForVerbosity maps -v/-q counts onto a threshold.
func LevelForVerbosity(verbose, quiet int) Level {
	l := NotifyLevel - Level(verbose) + Level(quiet)
	if l < DebugLevel {
		return DebugLevel
	}
	if l > FatalLevel {
		return FatalLevel
	}
	return l
}

// Logger is the logging collaborator every component talks to.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Notify(format string, args ...any)
	Warn(format string, args ...any)
	Fatal(format string, args ...any)

	// Log writes at an explicit level; used for filtered subprocess output.
	Log(level Level, format string, args ...any)

	// Indent and Dedent shift subsequent messages by two spaces.
	Indent()
	Dedent()

	StartProgress(msg string)
	ShowProgress()
	EndProgress(msg string)
}

// Console renders messages through charmbracelet/log.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	out      *log.Logger
	level    Level
	indent   int
	progress string
	dots     bool
	notify   lipgloss.Style
}

// New creates a console logger writing to w that drops messages below level.
func New(w io.Writer, level Level) *Console {
	out := log.NewWithOptions(w, log.Options{
		Prefix: "uvenv",
		Level:  log.DebugLevel,
	})

	styles := log.DefaultStyles()
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Bold(true).
		Foreground(lipgloss.Color("86"))
	out.SetStyles(styles)

	return &Console{
		w:      w,
		out:    out,
		level:  level,
		notify: lipgloss.NewStyle().Bold(true),
	}
}

func (c *Console) Debug(format string, args ...any) { c.Log(DebugLevel, format, args...) }
func (c *Console) Info(format string, args ...any) { c.Log(InfoLevel, format, args...) }
func (c *Console) Notify(format string, args ...any) { c.Log(NotifyLevel, format, args...) }
func (c *Console) Warn(format string, args ...any) { c.Log(WarnLevel, format, args...) }
func (c *Console) Fatal(format string, args ...any) { c.Log(FatalLevel, format, args...) }

// Log writes a message when level passes the threshold. Fatal messages are
// written at error level; terminating the process is left to the caller.
func (c *Console) Log(level Level, format string, args ...any) {
	if level < c.level {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dots {
		fmt.Fprintln(c.w)
		c.dots = false
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	msg = strings.Repeat(" ", c.indent) + msg

	switch level {
	case DebugLevel:
		c.out.Debug(msg)
	case InfoLevel:
		c.out.Info(msg)
	case NotifyLevel:
		c.out.Info(c.notify.Render(msg))
	case WarnLevel:
		c.out.Warn(msg)
	default:
		c.out.Error(msg)
	}
}

func (c *Console) Indent() {
	c.mu.Lock()
	c.indent += 2
	c.mu.Unlock()
}

func (c *Console) Dedent() {
	c.mu.Lock()
	if c.indent >= 2 {
		c.indent -= 2
	}
	c.mu.Unlock()
}

// StartProgress announces a long step. Output produced during the step is
// summarized with dots unless info-level output is visible.
func (c *Console) StartProgress(msg string) {
	c.Notify("%s", msg)
	c.mu.Lock()
	c.progress = msg
	c.mu.Unlock()
	c.Indent()
}

// ShowProgress emits a single dot for a line of suppressed output.
func (c *Console) ShowProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress == "" || c.level <= InfoLevel || c.level > NotifyLevel {
		return
	}
	fmt.Fprint(c.w, ".")
	c.dots = true
}

func (c *Console) EndProgress(msg string) {
	c.Dedent()
	c.mu.Lock()
	c.progress = ""
	c.mu.Unlock()
	c.Notify("%s", msg)
}

type nop struct{}

// Nop returns a logger that discards everything.
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any) {}
func (nop) Notify(string, ...any) {}
func (nop) Warn(string, ...any) {}
func (nop) Fatal(string, ...any) {}
func (nop) Log(Level, string, ...any) {}
func (nop) Indent() {}
func (nop) Dedent() {}
func (nop) StartProgress(string) {}
func (nop) ShowProgress() {}
func (nop) EndProgress(string) {}
