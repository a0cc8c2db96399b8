// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arc-language/uvenv/pkg/fsops"
)

// EnvPrefix namespaces environment overrides, e.g. VIRTUALENV_NEVER_DOWNLOAD.
const EnvPrefix = "VIRTUALENV"

// Backends accepted for the setuptools slot.
const (
	Setuptools = "setuptools"
	Distribute = "distribute"
)

// Options holds uvenv configuration
type Options struct {
	SystemSitePackages bool          `yaml:"system_site_packages" mapstructure:"system_site_packages"`
	Clear              bool          `yaml:"clear" mapstructure:"clear"`
	AlwaysCopy         bool          `yaml:"always_copy" mapstructure:"always_copy"`
	SearchDirs         []string      `yaml:"extra_search_dir" mapstructure:"extra_search_dir"`
	NeverDownload      bool          `yaml:"never_download" mapstructure:"never_download"`
	UnzipSetuptools    bool          `yaml:"unzip_setuptools" mapstructure:"unzip_setuptools"`
	Prompt             string        `yaml:"prompt" mapstructure:"prompt"`
	Backend            string        `yaml:"backend" mapstructure:"backend"`
	UseDistribute      bool          `yaml:"use_distribute,omitempty" mapstructure:"use_distribute"`
	Python             string        `yaml:"python" mapstructure:"python"`
	Verbosity          int           `yaml:"verbose" mapstructure:"verbose"`
	Quiet              int           `yaml:"quiet" mapstructure:"quiet"`
	IndexFile          string        `yaml:"index_file" mapstructure:"index_file"`
	CacheDir           string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	DownloadTimeout    time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"`
}

// DefaultOptions returns a default configuration
func DefaultOptions() *Options {
	return &Options{
		SearchDirs:      defaultSearchDirs(),
		Backend:         Setuptools,
		Python:          "python",
		CacheDir:        defaultCacheDir(),
		DownloadTimeout: 60 * time.Second,
	}
}

// DefaultPath returns $HOME/.config/uvenv/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "uvenv", "config.yaml"), nil
}

// Load merges defaults, the config file, VIRTUALENV_* variables and changed
// flags, in increasing precedence. An explicit path must exist; the default
// path may be absent. The returned string is the file actually read.
func Load(path string, flags *pflag.FlagSet) (*Options, string, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults := DefaultOptions()
	v.SetDefault("system_site_packages", defaults.SystemSitePackages)
	v.SetDefault("clear", defaults.Clear)
	v.SetDefault("always_copy", defaults.AlwaysCopy)
	v.SetDefault("extra_search_dir", defaults.SearchDirs)
	v.SetDefault("never_download", defaults.NeverDownload)
	v.SetDefault("unzip_setuptools", defaults.UnzipSetuptools)
	v.SetDefault("prompt", defaults.Prompt)
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("use_distribute", defaults.UseDistribute)
	v.SetDefault("python", defaults.Python)
	v.SetDefault("verbose", defaults.Verbosity)
	v.SetDefault("quiet", defaults.Quiet)
	v.SetDefault("index_file", defaults.IndexFile)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("download_timeout", defaults.DownloadTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	resolved := ""
	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		switch err := v.ReadInConfig(); {
		case err == nil:
			resolved = path
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return nil, "", fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, "", err
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, "", fmt.Errorf("parsing config: %w", err)
	}
	if err := opts.Normalize(); err != nil {
		return nil, "", err
	}
	return &opts, resolved, nil
}

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"distribute": "use_distribute",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	known := make(map[string]bool)
	for _, k := range v.AllKeys() {
		known[k] = true
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if !known[key] || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("binding flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

// Normalize folds UseDistribute into Backend and validates it.
func (o *Options) Normalize() error {
	if o.UseDistribute {
		o.Backend = Distribute
	}
	o.UseDistribute = false
	if o.Backend == "" {
		o.Backend = Setuptools
	}
	o.Backend = strings.ToLower(o.Backend)
	if o.Backend != Setuptools && o.Backend != Distribute {
		return fmt.Errorf("unknown backend %q (want %s or %s)", o.Backend, Setuptools, Distribute)
	}
	return nil
}

// Save writes configuration to path, or the default path when empty.
func Save(opts *Options, path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := fsops.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Marshal renders opts as YAML.
func Marshal(opts *Options) ([]byte, error) {
	return yaml.Marshal(opts)
}

// defaultSearchDirs looks next to the binary, then in a virtualenv_support
// dir beside it, then in the working dir.
func defaultSearchDirs() []string {
	dirs := []string{"."}
	exe, err := os.Executable()
	if err != nil {
		return dirs
	}
	here := filepath.Dir(exe)
	return append(dirs, here, filepath.Join(here, "virtualenv_support"))
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "uvenv")
	}
	return filepath.Join(os.TempDir(), "uvenv")
}
