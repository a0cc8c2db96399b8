package fsops

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func skipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
}

func mustSymlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink %s -> %s: %v", link, target, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveZeroHop(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	mustWrite(t, file, "x")

	got, err := NewResolver(dir).Resolve(file)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != file {
		t.Errorf("Expected %s, got %s", file, got)
	}
}

func TestResolveRelativeInputUsesBase(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "plain"), "x")

	got, err := NewResolver(dir).Resolve("plain")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(dir, "plain"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestResolveChain(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	real := filepath.Join(dir, "real", "python2.7")
	mustWrite(t, real, "bin")

	// top -> bin/python (absolute) -> ../mid -> real/python2.7
	mustSymlink(t, filepath.Join("real", "python2.7"), filepath.Join(dir, "mid"))
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	mustSymlink(t, "../mid", filepath.Join(dir, "bin", "python"))
	mustSymlink(t, filepath.Join(dir, "bin", "python"), filepath.Join(dir, "top"))

	wd, _ := os.Getwd()
	got, err := NewResolver(dir).Resolve(filepath.Join(dir, "top"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != real {
		t.Errorf("Expected %s, got %s", real, got)
	}
	if after, _ := os.Getwd(); after != wd {
		t.Errorf("working directory changed from %s to %s", wd, after)
	}
}

func TestResolveRelativeHopAgainstLinkDir(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	real := filepath.Join(dir, "lib", "os.py")
	mustWrite(t, real, "")
	mustSymlink(t, "lib/os.py", filepath.Join(dir, "link"))

	// Base points elsewhere; the hop must still be anchored at the link.
	got, err := NewResolver(t.TempDir()).Resolve(filepath.Join(dir, "link"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != real {
		t.Errorf("Expected %s, got %s", real, got)
	}
}

func TestResolveDanglingIsNotAnError(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	mustSymlink(t, "missing", filepath.Join(dir, "dangling"))

	got, err := NewResolver(dir).Resolve(filepath.Join(dir, "dangling"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(dir, "missing"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestResolveCycle(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	mustSymlink(t, "b", filepath.Join(dir, "a"))
	mustSymlink(t, "c", filepath.Join(dir, "b"))
	mustSymlink(t, "a", filepath.Join(dir, "c"))

	_, err := NewResolver(dir).Resolve(filepath.Join(dir, "a"))
	if !errors.Is(err, ErrRecursiveLink) {
		t.Fatalf("Expected ErrRecursiveLink, got %v", err)
	}
	var rle *RecursiveLinkError
	if !errors.As(err, &rle) {
		t.Fatalf("Expected *RecursiveLinkError, got %T", err)
	}
	if len(rle.Visited) != 3 {
		t.Errorf("Expected 3 visited hops, got %v", rle.Visited)
	}
}

func TestResolveSelfLink(t *testing.T) {
	skipWithoutSymlinks(t)
	dir := t.TempDir()
	mustSymlink(t, "self", filepath.Join(dir, "self"))

	_, err := NewResolver(dir).Resolve(filepath.Join(dir, "self"))
	if !errors.Is(err, ErrRecursiveLink) {
		t.Errorf("Expected ErrRecursiveLink, got %v", err)
	}
}
