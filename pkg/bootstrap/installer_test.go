package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/arc-language/uvenv/pkg/fsops"
	"github.com/arc-language/uvenv/pkg/logging"
	"github.com/arc-language/uvenv/pkg/registry"
	"github.com/arc-language/uvenv/pkg/runner"
)

type recordingRunner struct {
	cmds []runner.Cmd
	err  error
}

func (r *recordingRunner) Run(_ context.Context, cmd runner.Cmd) (runner.Result, error) {
	// staging dirs vanish after Install returns
	if cmd.Dir != "" {
		if _, err := os.Stat(filepath.Join(cmd.Dir, "setup.py")); err != nil {
			return runner.Result{}, err
		}
	}
	r.cmds = append(r.cmds, cmd)
	return runner.Result{}, r.err
}

type fakeFetcher struct {
	body  string
	calls int
	err   error
}

func (f *fakeFetcher) Download(_ context.Context, _ string, w io.Writer) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.body)
	return err
}

func testIndex(t *testing.T, sha string) *registry.Index {
	t.Helper()
	idx, err := registry.Parse(`
[packages.pip]
version = "1.3.1"
archive = "pip-*.tar.gz"
url = "https://example.invalid/pip-1.3.1.tar.gz"
sha256 = "` + sha + `"

[packages.setuptools]
version = "0.6c11"
archive = "setuptools-*.egg"
`)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestFindArchiveNeverDownload(t *testing.T) {
	f := &fakeFetcher{}
	inst := New(Config{
		SearchDirs:    []string{t.TempDir()},
		NeverDownload: true,
		Index:         testIndex(t, ""),
		Fetcher:       f,
	})

	_, err := inst.FindArchive(context.Background(), "pip")
	if !errors.Is(err, ErrArchiveNotFound) {
		t.Fatalf("Expected ErrArchiveNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "pip-*.tar.gz") {
		t.Errorf("error should name the pattern: %v", err)
	}
	if f.calls != 0 {
		t.Error("nothing should be downloaded")
	}

	if _, err := inst.FindArchive(context.Background(), "wheel"); !errors.Is(err, registry.ErrNotPinned) {
		t.Errorf("Expected ErrNotPinned, got %v", err)
	}
}

func TestFindArchiveNoURL(t *testing.T) {
	inst := New(Config{Index: testIndex(t, ""), Fetcher: &fakeFetcher{}})
	if _, err := inst.FindArchive(context.Background(), "setuptools"); !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("Expected ErrArchiveNotFound, got %v", err)
	}
}

func TestFindArchiveDownload(t *testing.T) {
	body := "archive bytes"
	sum := sha256.Sum256([]byte(body))
	good := hex.EncodeToString(sum[:])

	t.Run("verified", func(t *testing.T) {
		dl := t.TempDir()
		f := &fakeFetcher{body: body}
		inst := New(Config{Index: testIndex(t, good), Fetcher: f, DownloadDir: dl})

		got, err := inst.FindArchive(context.Background(), "pip")
		if err != nil {
			t.Fatalf("FindArchive() error = %v", err)
		}
		if want := filepath.Join(dl, "pip-1.3.1.tar.gz"); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
		data, err := os.ReadFile(got)
		if err != nil || string(data) != body {
			t.Errorf("unexpected download content %q (%v)", data, err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		dl := t.TempDir()
		inst := New(Config{Index: testIndex(t, strings.Repeat("0", 64)), Fetcher: &fakeFetcher{body: body}, DownloadDir: dl})

		if _, err := inst.FindArchive(context.Background(), "pip"); err == nil || !strings.Contains(err.Error(), "hash mismatch") {
			t.Fatalf("Expected hash mismatch, got %v", err)
		}
		entries, _ := os.ReadDir(dl)
		if len(entries) != 0 {
			t.Errorf("download dir should be empty after a mismatch, has %d entries", len(entries))
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		inst := New(Config{Index: testIndex(t, ""), Fetcher: &fakeFetcher{err: errors.New("offline")}, DownloadDir: t.TempDir()})
		if _, err := inst.FindArchive(context.Background(), "pip"); err == nil {
			t.Error("Expected download error")
		}
	})
}

func TestFindArchiveRelativeToCwd(t *testing.T) {
	cwd := t.TempDir()
	if err := os.MkdirAll(filepath.Join(cwd, "support"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeArchive(t, filepath.Join(cwd, "support"), "pip-1.3.1.tar.gz", compress(t, tarBytes(t, sdist), gzipWriter))

	inst := New(Config{SearchDirs: []string{".", "support"}, Cwd: cwd, NeverDownload: true, Index: testIndex(t, "")})
	got, err := inst.FindArchive(context.Background(), "pip")
	if err != nil {
		t.Fatalf("FindArchive() error = %v", err)
	}
	if want := filepath.Join(cwd, "support", "pip-1.3.1.tar.gz"); got != want {
		t.Errorf("FindArchive() = %s, want %s", got, want)
	}
}

func TestInstallSourceArchive(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "pip-1.3.1.tar.gz", compress(t, tarBytes(t, sdist), gzipWriter))

	r := &recordingRunner{}
	inst := New(Config{SearchDirs: []string{dir}, NeverDownload: true, Index: testIndex(t, ""), Runner: r})

	if err := inst.Install(context.Background(), "/env/bin/python", "pip"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if len(r.cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(r.cmds))
	}
	cmd := r.cmds[0]
	if !slices.Equal(cmd.Argv, []string{"/env/bin/python", "setup.py", "install"}) {
		t.Errorf("unexpected argv %v", cmd.Argv)
	}
	if filepath.Base(cmd.Dir) != "pip-1.3.1" {
		t.Errorf("expected to run inside the project dir, got %s", cmd.Dir)
	}
	for _, key := range []string{"PYTHONPATH", "PYTHONHOME", "__PYVENV_LAUNCHER__", "PYTHONDONTWRITEBYTECODE"} {
		if !slices.Contains(cmd.RemoveEnv, key) {
			t.Errorf("%s should be removed from the environment", key)
		}
	}
	if _, err := os.Stat(cmd.Dir); !os.IsNotExist(err) {
		t.Error("staging dir should be removed")
	}
}

func TestInstallEgg(t *testing.T) {
	dir := t.TempDir()
	egg := writeArchive(t, dir, "setuptools-0.6c11-py2.7.egg", []byte("egg"))

	for _, unzip := range []bool{false, true} {
		r := &recordingRunner{}
		inst := New(Config{SearchDirs: []string{dir}, UnzipSetuptools: unzip, Index: testIndex(t, ""), Runner: r})
		if err := inst.Install(context.Background(), "py", "setuptools"); err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		want := []string{"py", "-m", "easy_install", egg}
		if unzip {
			want = []string{"py", "-m", "easy_install", "--always-unzip", egg}
		}
		if !slices.Equal(r.cmds[0].Argv, want) {
			t.Errorf("unzip=%v: argv = %v, want %v", unzip, r.cmds[0].Argv, want)
		}
	}
}

func TestInstallRunnerFailure(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "pip-1.3.1.tar.gz", compress(t, tarBytes(t, sdist), gzipWriter))

	failure := &runner.ExitError{Argv: []string{"py"}, Code: 1}
	inst := New(Config{SearchDirs: []string{dir}, Index: testIndex(t, ""), Runner: &recordingRunner{err: failure}})

	err := inst.Install(context.Background(), "py", "pip")
	var exitErr *runner.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("Expected wrapped ExitError, got %v", err)
	}
}

func TestInstallDistutils(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lib", "python2.7", "distutils")
	fs := fsops.New(logging.Nop(), fsops.Options{})
	inst := New(Config{Index: testIndex(t, "")})

	if err := inst.InstallDistutils(fs, dir); err != nil {
		t.Fatalf("InstallDistutils() error = %v", err)
	}
	for _, name := range []string{"__init__.py", "distutils.cfg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}

	cfg := filepath.Join(dir, "distutils.cfg")
	if err := os.WriteFile(cfg, []byte("[install]\nprefix=/custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := inst.InstallDistutils(fs, dir); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(cfg); !strings.Contains(string(data), "/custom") {
		t.Error("customised distutils.cfg was overwritten")
	}
}

func TestOutputFilter(t *testing.T) {
	pip := outputFilter("pip")
	tests := map[string]logging.Level{
		"":                           logging.DebugLevel,
		"running install":            logging.DebugLevel,
		"Installing pip script":      logging.DebugLevel,
		"warning: no files found":    logging.InfoLevel,
		"Successfully installed pip": logging.InfoLevel,
	}
	for line, want := range tests {
		if got := pip(line); got != want {
			t.Errorf("filter(%q) = %v, want %v", line, got, want)
		}
	}
	if got := outputFilter("distribute")("anything"); got != logging.DebugLevel {
		t.Errorf("distribute output should be debug, got %v", got)
	}
}
