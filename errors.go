// errors.go
package uvenv

import (
	"errors"
	"fmt"

	"github.com/arc-language/uvenv/pkg/bootstrap"
	"github.com/arc-language/uvenv/pkg/fsops"
	"github.com/arc-language/uvenv/pkg/platform"
	"github.com/arc-language/uvenv/pkg/runner"
	"github.com/arc-language/uvenv/pkg/venv"
)

var (
	// ErrSelfCheck indicates the new interpreter did not find its own prefix
	ErrSelfCheck = venv.ErrSelfCheck

	// ErrArchiveNotFound indicates a bootstrap archive is missing and downloads are off
	ErrArchiveNotFound = bootstrap.ErrArchiveNotFound

	// ErrRecursiveLink indicates a symlink cycle
	ErrRecursiveLink = fsops.ErrRecursiveLink

	// ErrSpawnPermission indicates an executable could not be started
	ErrSpawnPermission = runner.ErrPermission

	// ErrShortPath indicates a Windows path with spaces has no short form
	ErrShortPath = platform.ErrShortPath

	// ErrUnsupportedPlatform indicates an interpreter version uvenv cannot clone
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

// Exit statuses reported by the CLI.
const (
	ExitOK         = 0
	ExitUnexpected = 1
	ExitConfig     = 2
	ExitShortPath  = 3
	ExitSelfCheck  = 100
)

// Error wraps an error with additional context
type Error struct {
	Op   string // Operation that failed
	Path string // Environment root if applicable
	Code int    // Exit status
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode maps err onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if errors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrSelfCheck), errors.Is(err, ErrSpawnPermission):
		return ExitSelfCheck
	case errors.Is(err, ErrArchiveNotFound):
		return ExitConfig
	case errors.Is(err, ErrShortPath):
		return ExitShortPath
	default:
		return ExitUnexpected
	}
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Code: ExitCode(err), Err: err}
}
