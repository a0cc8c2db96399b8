// internal/cli/create.go
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/arc-language/uvenv"
	"github.com/arc-language/uvenv/pkg/logging"
)

func runCreate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Help()
		return &uvenv.Error{Op: "usage", Code: uvenv.ExitConfig, Err: errors.New("you must provide a DEST_DIR")}
	}

	o, err := options()
	if err != nil {
		return err
	}

	log := logging.New(cmd.ErrOrStderr(), logging.LevelForVerbosity(o.Verbosity, o.Quiet))
	if cfgPath != "" {
		log.Debug("Using config %s", cfgPath)
	}

	return uvenv.Create(cmd.Context(), args[0], o, log)
}
