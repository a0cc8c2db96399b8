package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("uvenv", pflag.ContinueOnError)
	fs.String("prompt", "", "")
	fs.Bool("clear", false, "")
	fs.Bool("distribute", false, "")
	fs.CountP("verbose", "v", "")
	fs.StringSlice("extra-search-dir", nil, "")
	fs.Bool("never-download", false, "")
	fs.String("unrelated", "", "")
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	opts, resolved, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if resolved != "" {
		t.Errorf("no file should be read, got %s", resolved)
	}
	if opts.Backend != Setuptools || opts.Python != "python" {
		t.Errorf("unexpected defaults %+v", opts)
	}
	if opts.DownloadTimeout != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", opts.DownloadTimeout)
	}
	if len(opts.SearchDirs) == 0 || opts.SearchDirs[0] != "." {
		t.Errorf("search dirs should start with the working dir: %v", opts.SearchDirs)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "prompt: file\nclear: true\nnever_download: true\nextra_search_dir: [/from/file]\n")

	t.Run("file", func(t *testing.T) {
		opts, resolved, err := Load(path, testFlags())
		if err != nil {
			t.Fatal(err)
		}
		if resolved != path {
			t.Errorf("Expected %s to be read, got %q", path, resolved)
		}
		if opts.Prompt != "file" || !opts.Clear || !opts.NeverDownload {
			t.Errorf("file values not applied: %+v", opts)
		}
		if !slices.Equal(opts.SearchDirs, []string{"/from/file"}) {
			t.Errorf("unexpected search dirs %v", opts.SearchDirs)
		}
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("VIRTUALENV_PROMPT", "env")
		opts, _, err := Load(path, testFlags())
		if err != nil {
			t.Fatal(err)
		}
		if opts.Prompt != "env" {
			t.Errorf("Expected env prompt, got %q", opts.Prompt)
		}
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("VIRTUALENV_PROMPT", "env")
		flags := testFlags()
		if err := flags.Parse([]string{"--prompt", "flag", "-vv", "--extra-search-dir", "/a,/b"}); err != nil {
			t.Fatal(err)
		}
		opts, _, err := Load(path, flags)
		if err != nil {
			t.Fatal(err)
		}
		if opts.Prompt != "flag" {
			t.Errorf("Expected flag prompt, got %q", opts.Prompt)
		}
		if opts.Verbosity != 2 {
			t.Errorf("Expected verbosity 2, got %d", opts.Verbosity)
		}
		if !slices.Equal(opts.SearchDirs, []string{"/a", "/b"}) {
			t.Errorf("unexpected search dirs %v", opts.SearchDirs)
		}
	})
}

func TestUseDistribute(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Run("env", func(t *testing.T) {
		t.Setenv("VIRTUALENV_USE_DISTRIBUTE", "1")
		opts, _, err := Load("", testFlags())
		if err != nil {
			t.Fatal(err)
		}
		if opts.Backend != Distribute {
			t.Errorf("Expected distribute backend, got %s", opts.Backend)
		}
	})

	t.Run("flag", func(t *testing.T) {
		flags := testFlags()
		if err := flags.Parse([]string{"--distribute"}); err != nil {
			t.Fatal(err)
		}
		opts, _, err := Load("", flags)
		if err != nil {
			t.Fatal(err)
		}
		if opts.Backend != Distribute {
			t.Errorf("Expected distribute backend, got %s", opts.Backend)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
	if _, _, err := Load(writeConfig(t, "backend: eggs\n"), nil); err == nil {
		t.Error("Expected error for an unknown backend")
	}
	if _, _, err := Load(writeConfig(t, "prompt: [unterminated\n"), nil); err == nil {
		t.Error("Expected error for invalid yaml")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := DefaultOptions()
	in.Prompt = "(saved) "
	in.SystemSitePackages = true
	in.SearchDirs = []string{"/opt/archives"}

	if err := Save(in, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	out, _, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.Prompt != in.Prompt || !out.SystemSitePackages || !slices.Equal(out.SearchDirs, in.SearchDirs) {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if out.DownloadTimeout != in.DownloadTimeout {
		t.Errorf("timeout changed: %v", out.DownloadTimeout)
	}
}

func TestSaveReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("prompt: old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Prompt = "new"
	if err := Save(opts, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, _, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Prompt != "new" {
		t.Errorf("Expected the saved prompt, got %q", out.Prompt)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only config.yaml, found %d entries", len(entries))
	}
}
