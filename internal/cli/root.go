// internal/cli/root.go
package cli

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/arc-language/uvenv"
	"github.com/arc-language/uvenv/pkg/config"
)

// Version is set via -ldflags.
var Version = "1.9.1"

var (
	cfgFile    string
	setuptools bool

	opts    *config.Options
	cfgPath string
	cfgErr  error

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

// rootCmd creates an environment when given a destination directory.
var rootCmd = &cobra.Command{
	Use:   "uvenv [flags] DEST_DIR",
	Short: "Create isolated Python environments",
	Long: titleStyle.Render("uvenv") + ` - isolated Python environments

uvenv clones the host interpreter into DEST_DIR: a private bin dir with
its own python, the minimal stdlib needed to start it, a generated site.py
and setuptools (or distribute) and pip installed into the new environment.

Environment variables named VIRTUALENV_<OPTION> override the config file,
e.g. VIRTUALENV_NEVER_DOWNLOAD=true or VIRTUALENV_USE_DISTRIBUTE=1.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultOptions()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/uvenv/config.yaml)")
	flags.CountP("verbose", "v", "increase verbosity")
	flags.CountP("quiet", "q", "decrease verbosity")
	flags.StringP("python", "p", defaults.Python, "interpreter to create the environment with")
	flags.Bool("clear", false, "clear out the non-root install and start from scratch")
	flags.Bool("system-site-packages", false, "give the environment access to the global site-packages")
	flags.Bool("always-copy", false, "copy files instead of symlinking them")
	flags.StringSlice("extra-search-dir", defaults.SearchDirs, "directory to look for setuptools/distribute/pip archives in")
	flags.Bool("never-download", false, "never download bootstrap archives, fail if none is found locally")
	flags.Bool("unzip-setuptools", false, "unzip setuptools or distribute when installing")
	flags.String("prompt", "", "prefix for the prompt of the activated environment")
	flags.Bool("distribute", false, "use distribute instead of setuptools")
	flags.BoolVar(&setuptools, "setuptools", false, "use setuptools (the default)")
	flags.String("index-file", "", "TOML file pinning bootstrap package versions")
	flags.String("cache-dir", defaults.CacheDir, "directory downloads are stored in")
	flags.Duration("download-timeout", defaults.DownloadTimeout, "timeout for bootstrap downloads")

	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	opts, cfgPath, cfgErr = config.Load(cfgFile, rootCmd.PersistentFlags())
	if cfgErr != nil {
		return
	}
	if setuptools {
		opts.Backend = config.Setuptools
	}
}

// options returns the merged configuration or the error loading it.
func options() (*config.Options, error) {
	if cfgErr != nil {
		return nil, &uvenv.Error{Op: "config", Path: cfgFile, Code: uvenv.ExitConfig, Err: cfgErr}
	}
	return opts, nil
}

// Main runs the CLI and returns the process exit status.
func Main() int {
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	return uvenv.ExitCode(err)
}
