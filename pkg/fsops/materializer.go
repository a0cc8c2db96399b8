package fsops

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/u-root/u-root/pkg/cp"

	"github.com/arc-language/uvenv/pkg/logging"
)

// Options configures a Materializer.
type Options struct {
	// Base anchors relative paths; normally the host working directory.
	Base string

	// CopyOnly disables symlinks entirely. Windows interpreters do not follow
	// links when locating their own prefix.
	CopyOnly bool
}

// Materializer places files into an environment tree.
type Materializer struct {
	log      logging.Logger
	resolver *Resolver
	copyOnly bool
}

// New creates a Materializer.
func New(log logging.Logger, opts Options) *Materializer {
	if log == nil {
		log = logging.Nop()
	}
	return &Materializer{
		log:      log,
		resolver: NewResolver(opts.Base),
		copyOnly: opts.CopyOnly,
	}
}

// Resolver returns the link resolver used for placements.
func (m *Materializer) Resolver() *Resolver {
	return m.resolver
}

// CopyOnly reports whether symlinks are disabled.
func (m *Materializer) CopyOnly() bool {
	return m.copyOnly
}

// Place reproduces src at dst, as a symlink when symlink is true and links
// are available, otherwise as a copy. Running it twice is a no-op. An
// existing regular dst is left alone; an existing link is replaced when it
// is the wrong kind or points somewhere else. A missing src only warns.
func (m *Materializer) Place(src, dst string, symlink bool) error {
	src, dst = m.resolver.Abs(src), m.resolver.Abs(dst)

	// At most one removal can happen before dst is absent.
	for pass := 0; pass < 2; pass++ {
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				m.log.Warn("Cannot find file %s (bad symlink)", src)
				return nil
			}
			if _, rerr := m.resolver.Resolve(src); rerr != nil {
				return rerr
			}
			return fmt.Errorf("checking %s: %w", src, err)
		}

		fi, err := os.Lstat(dst)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", dst, err)
			}
			return m.create(src, dst, symlink)
		}

		if fi.Mode()&fs.ModeSymlink == 0 {
			m.log.Debug("Cannot copy %s to %s; file already exists", src, dst)
			return nil
		}

		if !symlink {
			m.log.Info("Replacing symlink %s with a copy", dst)
		} else {
			current, err := m.resolver.Resolve(dst)
			if err != nil {
				return err
			}
			wanted, err := m.resolver.Resolve(src)
			if err != nil {
				return err
			}
			if current == wanted {
				m.log.Debug("Symlink %s already points at %s", dst, wanted)
				return nil
			}
			m.log.Notify("Symlink %s points at %s instead of %s; fixing", dst, current, wanted)
		}

		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("removing %s: %w", dst, err)
		}
	}
	return fmt.Errorf("placing %s: destination reappeared", dst)
}

func (m *Materializer) create(src, dst string, symlink bool) error {
	parent := filepath.Dir(dst)
	if _, err := os.Stat(parent); errors.Is(err, fs.ErrNotExist) {
		m.log.Info("Creating parent directories for %s", parent)
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", parent, err)
		}
	}

	resolved, err := m.resolver.Resolve(src)
	if err != nil {
		return err
	}

	if symlink && !m.copyOnly {
		err := os.Symlink(resolved, dst)
		if err == nil {
			m.log.Info("Symlinking %s", dst)
			return nil
		}
		m.log.Info("Symlinking %s failed (%v); copying instead", dst, err)
	}

	fi, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("reading %s: %w", resolved, err)
	}

	if fi.IsDir() {
		m.log.Info("Copying directory %s to %s", resolved, dst)
		if err := cp.NoFollowSymlinks.CopyTree(resolved, dst); err != nil {
			return fmt.Errorf("copying %s: %w", resolved, err)
		}
		return nil
	}

	m.log.Info("Copying to %s", dst)
	if err := cp.Default.Copy(resolved, dst); err != nil {
		return fmt.Errorf("copying %s: %w", resolved, err)
	}
	if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode on %s: %w", dst, err)
	}
	return nil
}

// Write puts content at dst. Identical content is left alone; different
// content is only replaced when overwrite is set.
func (m *Materializer) Write(dst, content string, overwrite bool) error {
	dst = m.resolver.Abs(dst)
	data := []byte(content)

	existing, err := os.ReadFile(dst)
	switch {
	case err == nil:
		if bytes.Equal(existing, data) {
			m.log.Info("Content %s already in place", dst)
			return nil
		}
		if !overwrite {
			m.log.Notify("File %s exists with different content; not overwriting", dst)
			return nil
		}
		m.log.Notify("Overwriting %s with new content", dst)
	case errors.Is(err, fs.ErrNotExist):
		m.log.Info("Writing %s", dst)
	default:
		return fmt.Errorf("reading %s: %w", dst, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if err := WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// MakeExecutable adds read and execute bits for everyone. Symlinks are
// skipped.
func (m *Materializer) MakeExecutable(path string) error {
	path = m.resolver.Abs(path)
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Mode()&fs.ModeSymlink != 0 {
		m.log.Info("Not changing mode of symlink %s", path)
		return nil
	}

	mode := fi.Mode().Perm() | 0o555
	if mode == fi.Mode().Perm() {
		return nil
	}
	m.log.Info("Changed mode of %s to %#o", path, mode)
	return os.Chmod(path, mode)
}

// Mkdir creates path and its parents.
func (m *Materializer) Mkdir(path string) error {
	path = m.resolver.Abs(path)
	if _, err := os.Stat(path); err == nil {
		m.log.Debug("Directory %s already exists", path)
		return nil
	}
	m.log.Info("Creating %s", path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

// RemoveTree deletes path recursively.
func (m *Materializer) RemoveTree(path string) error {
	path = m.resolver.Abs(path)
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		m.log.Info("Do not need to delete %s; already gone", path)
		return nil
	}
	m.log.Notify("Deleting tree %s", path)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Remove deletes a single file or link. A missing path is fine.
func (m *Materializer) Remove(path string) error {
	path = m.resolver.Abs(path)
	err := os.Remove(path)
	if err == nil {
		m.log.Info("Deleted %s", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("removing %s: %w", path, err)
}

// Symlink creates link pointing at target verbatim, so relative targets
// stay relative. An existing link is replaced; other files are an error.
func (m *Materializer) Symlink(target, link string) error {
	link = m.resolver.Abs(link)

	if fi, err := os.Lstat(link); err == nil {
		if fi.Mode()&fs.ModeSymlink == 0 {
			return fmt.Errorf("linking %s: %w", link, fs.ErrExist)
		}
		if current, _ := os.Readlink(link); current == target {
			m.log.Debug("Symlink %s already points at %s", link, target)
			return nil
		}
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("removing %s: %w", link, err)
		}
	}

	m.log.Info("Symlinking %s -> %s", link, target)
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("linking %s: %w", link, err)
	}
	return nil
}

// Exists reports whether path exists, following links.
func (m *Materializer) Exists(path string) bool {
	_, err := os.Stat(m.resolver.Abs(path))
	return err == nil
}

// IsLink reports whether path itself is a symlink.
func IsLink(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.Mode()&fs.ModeSymlink != 0
}
