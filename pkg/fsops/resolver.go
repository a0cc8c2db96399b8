// Package fsops reproduces interpreter files into an environment tree.
//
// The Resolver follows symlink chains with plain path arithmetic so the
// process working directory is never touched. The Materializer builds on it
// to place files as links or copies idempotently.
package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrRecursiveLink is wrapped by RecursiveLinkError.
var ErrRecursiveLink = errors.New("recursive symlink")

// RecursiveLinkError reports a symlink chain that revisits a hop.
type RecursiveLinkError struct {
	Visited []string
	Target  string
}

func (e *RecursiveLinkError) Error() string {
	visited := append([]string(nil), e.Visited...)
	sort.Strings(visited)
	return fmt.Sprintf("recursive symlink to %s (visited: %s)", e.Target, strings.Join(visited, ", "))
}

func (e *RecursiveLinkError) Unwrap() error { return ErrRecursiveLink }

// Resolver follows symlink chains. Relative inputs are anchored at Base,
// which callers take from the host context instead of os.Getwd.
type Resolver struct {
	Base string
}

// NewResolver returns a Resolver anchored at base.
func NewResolver(base string) *Resolver {
	return &Resolver{Base: base}
}

// Abs anchors path at the resolver base.
func (r *Resolver) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.Base, path)
}

// Resolve follows path through every symlink hop and returns the final path.
// Relative link targets are joined to the directory holding the link. The
// final path need not exist.
func (r *Resolver) Resolve(path string) (string, error) {
	path = r.Abs(path)
	visited := make(map[string]struct{})

	for {
		fi, err := os.Lstat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return path, nil
			}
			return "", fmt.Errorf("resolving %s: %w", path, err)
		}
		if fi.Mode()&fs.ModeSymlink == 0 {
			return path, nil
		}

		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("reading link %s: %w", path, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		target = filepath.Clean(target)

		if _, seen := visited[target]; seen {
			hops := make([]string, 0, len(visited))
			for h := range visited {
				hops = append(hops, h)
			}
			return "", &RecursiveLinkError{Visited: hops, Target: target}
		}
		visited[target] = struct{}{}
		path = target
	}
}
