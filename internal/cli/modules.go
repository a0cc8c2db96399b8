// internal/cli/modules.go
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arc-language/uvenv/pkg/modules"
)

var (
	modulesVersion string
	modulesVariant string
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the stdlib modules copied into a new environment",
	Long: `Print the modules and support files uvenv copies from the host
standard library for an interpreter version and variant.

Examples:
  uvenv modules
  uvenv modules --python-version 3.3
  uvenv modules --python-version 2.7 --variant pypy`,
	Args: cobra.NoArgs,
	RunE: runModules,
}

func init() {
	modulesCmd.Flags().StringVar(&modulesVersion, "python-version", "2.7", "interpreter version as MAJOR.MINOR")
	modulesCmd.Flags().StringVar(&modulesVariant, "variant", string(modules.Posix), "one of posix, win32, jython, pypy")
}

func runModules(cmd *cobra.Command, args []string) error {
	major, minor, err := parseVersion(modulesVersion)
	if err != nil {
		return err
	}

	v := modules.Variant(strings.ToLower(modulesVariant))
	switch v {
	case modules.Posix, modules.Windows, modules.Jython, modules.PyPy:
	default:
		return fmt.Errorf("unknown variant %q", modulesVariant)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Modules for %d.%d (%s):", major, minor, v)))
	for _, name := range modules.Required(major, minor, v) {
		fmt.Fprintf(out, "  %s\n", name)
	}

	fmt.Fprintln(out, titleStyle.Render("Support files:"))
	for _, name := range modules.RequiredFiles(major, minor) {
		fmt.Fprintf(out, "  %s\n", name)
	}

	return nil
}

func parseVersion(s string) (int, int, error) {
	majStr, minStr, ok := strings.Cut(s, ".")
	if !ok {
		return 0, 0, fmt.Errorf("invalid version %q (want MAJOR.MINOR)", s)
	}
	major, err := strconv.Atoi(majStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	minor, err := strconv.Atoi(minStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}
	return major, minor, nil
}
