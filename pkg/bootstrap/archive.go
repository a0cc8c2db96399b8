package bootstrap

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"zombiezen.com/go/nix/nar"
)

// ErrUnsafePath is returned for archive members that would land outside
// the staging dir.
var ErrUnsafePath = errors.New("archive member escapes destination")

// findArchive returns the match for pattern across dirs. Matches are
// ordered by lower-cased file name, then by dir order, and the last one
// wins, so the highest version-like name is preferred.
func findArchive(dirs []string, pattern string) (string, bool) {
	type match struct {
		key  string
		dir  int
		path string
	}
	var matches []match

	for i, dir := range dirs {
		names, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			continue
		}
		for _, name := range names {
			p := filepath.Join(dir, filepath.FromSlash(name))
			if fi, err := os.Stat(p); err != nil || fi.IsDir() {
				continue
			}
			matches = append(matches, match{strings.ToLower(filepath.Base(p)), i, p})
		}
	}
	if len(matches) == 0 {
		return "", false
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].key != matches[b].key {
			return matches[a].key < matches[b].key
		}
		return matches[a].dir < matches[b].dir
	})
	return matches[len(matches)-1].path, true
}

// isPrebuilt reports archives installed as-is rather than unpacked.
func isPrebuilt(archive string) bool {
	ext := strings.ToLower(filepath.Ext(archive))
	return ext == ".egg" || ext == ".whl"
}

// Stage unpacks archive into dest and returns the dir holding setup.py.
func Stage(archive, dest string) (string, error) {
	name := strings.ToLower(filepath.Base(archive))

	f, err := os.Open(archive)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		if err := extractTar(gz, dest); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".tar.xz"):
		xr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return "", fmt.Errorf("creating xz reader: %w", err)
		}
		if err := extractTar(xr, dest); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tar.zstd"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		if err := extractTar(zr, dest); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".tar.bz2"):
		if err := extractTar(bzip2.NewReader(f), dest); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".tar"):
		if err := extractTar(f, dest); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".zip"):
		fi, err := f.Stat()
		if err != nil {
			return "", err
		}
		if err := extractZip(f, fi.Size(), dest); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".nar.xz"):
		xr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			return "", fmt.Errorf("creating xz reader: %w", err)
		}
		if err := extractNAR(xr, dest, strings.TrimSuffix(name, ".nar.xz")); err != nil {
			return "", err
		}
	case strings.HasSuffix(name, ".nar"):
		if err := extractNAR(f, dest, strings.TrimSuffix(name, ".nar")); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(archive))
	}

	return projectDir(dest)
}

// projectDir finds setup.py at the top of dest or one level down.
func projectDir(dest string) (string, error) {
	if _, err := os.Stat(filepath.Join(dest, "setup.py")); err == nil {
		return dest, nil
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", err
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(dest, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "setup.py")); err == nil {
			found = append(found, dir)
		}
	}
	if len(found) != 1 {
		return "", fmt.Errorf("expected one project with setup.py in archive, found %d", len(found))
	}
	return found[0], nil
}

func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func checkLink(dest, target, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("%w: absolute link %s", ErrUnsafePath, link)
	}
	resolved := filepath.Join(filepath.Dir(target), link)
	rel, err := filepath.Rel(dest, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: link %s", ErrUnsafePath, link)
	}
	return nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing file %s: %w", target, err)
	}
	return out.Close()
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			perm := hdr.FileInfo().Mode().Perm()
			if perm == 0 {
				perm = 0o644
			}
			if err := writeFile(target, tr, perm); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(dest, target, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink: %w", err)
			}
		default:
			// sdists carry nothing else worth keeping
		}
	}
}

func extractZip(r io.ReaderAt, size int64, dest string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("reading zip: %w", err)
	}
	for _, f := range zr.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		perm := f.Mode().Perm()
		if perm == 0 {
			perm = 0o644
		}
		err = writeFile(target, rc, perm)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractNAR unpacks a Nix archive. A NAR holding a single file is written
// as dest/<name>.
func extractNAR(r io.Reader, dest, name string) error {
	nr := nar.NewReader(bufio.NewReader(r))
	for {
		hdr, err := nr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading NAR entry: %w", err)
		}

		p := hdr.Path
		if p == "" && hdr.Mode.Type() != fs.ModeDir {
			p = name
		}
		target, err := safeJoin(dest, p)
		if err != nil {
			return err
		}

		switch hdr.Mode.Type() {
		case fs.ModeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case fs.ModeSymlink:
			if err := checkLink(dest, target, hdr.LinkTarget); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent directory: %w", err)
			}
			if err := os.Symlink(hdr.LinkTarget, target); err != nil {
				return fmt.Errorf("creating symlink: %w", err)
			}
		case 0:
			perm := fs.FileMode(0o644)
			if hdr.Mode&0o111 != 0 {
				perm = 0o755
			}
			if err := writeFile(target, nr, perm); err != nil {
				return err
			}
		}
	}
}
